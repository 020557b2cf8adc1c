package core

// ErrorKind classifies the expected failure modes of the core so the
// presentation layer can report denial, absence and conflicts distinctly.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindDeniedPermission
	KindDeniedBanned
	KindDeniedSelfAction
	KindAlreadyExists
	KindConflict
	KindLimitExceeded
	KindInvalidState
	KindMustUnblock
)

// Error is an expected outcome, not a fault. Store unavailability and other
// genuinely unexpected failures are returned as plain wrapped errors instead.
type Error struct {
	Kind ErrorKind
	msg  string
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrChatNotFound     = NewError(KindNotFound, "chat not found")
	ErrUserNotFound     = NewError(KindNotFound, "user not found")
	ErrMessageNotFound  = NewError(KindNotFound, "message not found")
	ErrBanNotFound      = NewError(KindNotFound, "ban not found")
	ErrBlockNotFound    = NewError(KindNotFound, "block not found")
	ErrGrantNotFound    = NewError(KindNotFound, "permission grant not found")
	ErrReactionNotFound = NewError(KindNotFound, "reaction not found")

	ErrDeniedPermission = NewError(KindDeniedPermission, "permission denied")
	ErrOwnerUnbannable  = NewError(KindDeniedPermission, "cannot ban the chat owner")
	ErrPrivateChat      = NewError(KindDeniedPermission, "cannot join a private chat")

	// ErrDeniedBanned is returned when the acting user is banned from the
	// chat, or blocked by the other conversation participant.
	ErrDeniedBanned = NewError(KindDeniedBanned, "banned from this chat")

	ErrSelfAction = NewError(KindDeniedSelfAction, "cannot perform this action on yourself")

	ErrAlreadyBanned  = NewError(KindAlreadyExists, "user is already banned from this chat")
	ErrAlreadyBlocked = NewError(KindAlreadyExists, "user is already blocked")
	ErrAlreadyGranted = NewError(KindAlreadyExists, "user already has this permission")
	ErrAlreadyReacted = NewError(KindAlreadyExists, "user already reacted with this keyword")

	ErrAlreadyMember = NewError(KindConflict, "user is already a member of this chat")
	ErrAlreadyPinned = NewError(KindConflict, "message is already pinned")

	ErrPinLimitReached = NewError(KindLimitExceeded, "pinned message limit reached for this chat")

	ErrNotPinned         = NewError(KindInvalidState, "message is not pinned")
	ErrInvalidPermission = NewError(KindInvalidState, "unknown permission")

	// ErrMustUnblock is returned to a sender who has blocked the receiver
	// themselves, as opposed to ErrDeniedBanned for the blocked side.
	ErrMustUnblock = NewError(KindMustUnblock, "unblock this user before messaging them")
)
