package simpchat

import "github.com/putto11262002/simpchat/core"

// onUserOnline runs when a user's first connection opens. Related users who
// are online learn the user came online, and the user learns which related
// users are online right now.
func (app *App) onUserOnline(userID string) {
	related, err := app.presence.RelatedOnline(app.context, userID)
	if err != nil {
		app.logger.Warn("resolving related users: " + err.Error())
		return
	}

	payload := PresenceEventPayload{UserID: userID}
	app.eventRouter.EmitTo(core.EventUserOnline, payload, related...)

	for _, other := range related {
		app.eventRouter.EmitTo(core.EventUserOnline, PresenceEventPayload{UserID: other}, userID)
	}
}

// onUserOffline runs when a user's last connection closes.
func (app *App) onUserOffline(userID string) {
	related, err := app.presence.RelatedOnline(app.context, userID)
	if err != nil {
		app.logger.Warn("resolving related users: " + err.Error())
		return
	}

	payload := PresenceEventPayload{UserID: userID}
	app.eventRouter.EmitTo(core.EventUserOffline, payload, related...)
}
