package errs

import "errors"

// Validation errors are shown to the acting user and never retried.
var (
	ErrPermissionDenied = errors.New("E0001: permission denied")
	ErrAlreadyInTeam    = errors.New("E0002: already in a team")
	ErrNotInTeam        = errors.New("E0003: not in a team")
	ErrTeamNotFound     = errors.New("E0004: team not found")
	ErrNameTaken        = errors.New("E0005: team name taken")
	ErrTeamFull         = errors.New("E0006: team is full")
	ErrCannotKickSelf   = errors.New("E0007: cannot kick yourself")
	ErrOwnerMustDisband = errors.New("E0008: owner must disband the team")
	ErrTeamNameRequired = errors.New("E0009: team name is required")
	ErrTeamNameTooLong  = errors.New("E0010: team name too long")
	ErrInvalidOffer     = errors.New("E0011: invalid invitation")
	ErrOfferRevoked     = errors.New("E0012: invitation no longer valid")
)

// Platform errors come from the chat platform collaborators.
var (
	ErrTransientNetwork    = errors.New("E0101: transient network error")
	ErrRemoteServer        = errors.New("E0102: remote server error")
	ErrAuthorizationDenied = errors.New("E0103: authorization denied")
	ErrRemoteNotFound      = errors.New("E0104: remote object not found")
	ErrRemoteRequest       = errors.New("E0105: remote request rejected")
	ErrDirectMessageFailed = errors.New("E0106: could not deliver direct message")
)

var (
	ErrStoreIO       = errors.New("E0201: store error")
	ErrStoreConflict = errors.New("E0202: store conflict")
	ErrUnauthorized  = errors.New("E0301: unauthorized")
	ErrJWT           = errors.New("E0302: JWT failure")
	ErrTokenExpired  = errors.New("E0303: token expired")
	ErrNotAdmin      = errors.New("E0304: not admin")
)

var validation = []error{
	ErrPermissionDenied,
	ErrAlreadyInTeam,
	ErrNotInTeam,
	ErrTeamNotFound,
	ErrNameTaken,
	ErrTeamFull,
	ErrCannotKickSelf,
	ErrOwnerMustDisband,
	ErrTeamNameRequired,
	ErrTeamNameTooLong,
	ErrInvalidOffer,
	ErrOfferRevoked,
}

// IsValidation reports whether err is a rejection of the user's request
// rather than a failure of the system.
func IsValidation(err error) bool {
	for _, v := range validation {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
