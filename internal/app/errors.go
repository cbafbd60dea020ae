package app

import "net/http"

// BusinessError is a user-presentable failure with a stable code. Codes are
// shared with clients and must not change meaning once shipped.
type BusinessError struct {
	Code    string
	Status  int
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

var (
	// common
	ErrInvalidInput = &BusinessError{Code: "C002", Status: http.StatusBadRequest, Message: "invalid input value"}
	ErrAccessDenied = &BusinessError{Code: "A002", Status: http.StatusForbidden, Message: "you do not have access to this resource"}

	// users
	ErrUserNotFound = &BusinessError{Code: "U001", Status: http.StatusNotFound, Message: "user not found"}

	// couples / pairing
	ErrCoupleNotFound          = &BusinessError{Code: "CP001", Status: http.StatusNotFound, Message: "no connected couple found"}
	ErrInvalidInviteCode       = &BusinessError{Code: "CP002", Status: http.StatusBadRequest, Message: "invalid invite code"}
	ErrAlreadyConnected        = &BusinessError{Code: "CP003", Status: http.StatusBadRequest, Message: "you are already connected to a partner"}
	ErrCannotConnectSelf       = &BusinessError{Code: "CP004", Status: http.StatusBadRequest, Message: "you cannot connect with yourself"}
	ErrPartnerAlreadyConnected = &BusinessError{Code: "CP005", Status: http.StatusBadRequest, Message: "that user is already connected to a partner"}
	ErrPendingRequestExists    = &BusinessError{Code: "CP006", Status: http.StatusConflict, Message: "that user already has a pending pairing request"}
	ErrRequestNotFound         = &BusinessError{Code: "CP007", Status: http.StatusNotFound, Message: "no pairing request to process"}

	// questions & answers
	ErrQuestionNotFound      = &BusinessError{Code: "Q001", Status: http.StatusNotFound, Message: "question not found"}
	ErrAnswerAlreadyExists   = &BusinessError{Code: "Q002", Status: http.StatusConflict, Message: "you already answered this question"}
	ErrPartnerAnswerLocked   = &BusinessError{Code: "Q003", Status: http.StatusForbidden, Message: "answer the question yourself before looking at your partner"}
	ErrQuestionPoolExhausted = &BusinessError{Code: "Q004", Status: http.StatusConflict, Message: "no question available for this couple"}
	ErrAnswerNotFound        = &BusinessError{Code: "Q005", Status: http.StatusNotFound, Message: "answer not found"}
	ErrPartnerNotAnswered    = &BusinessError{Code: "Q006", Status: http.StatusBadRequest, Message: "your partner has not written an answer yet"}
	ErrSelfReveal            = &BusinessError{Code: "Q007", Status: http.StatusBadRequest, Message: "your own answer does not need a reveal"}
)
