package game

import "errors"

// Sentinel errors returned by Game operations. Callers match them with errors.Is;
// the returned error may wrap one of these with extra context.
var (
	ErrValidation            = errors.New("validation error")
	ErrNameTaken             = errors.New("player name already taken")
	ErrGameAlreadyStarted    = errors.New("game already started")
	ErrGameFull              = errors.New("game is full")
	ErrPlayersNotReady       = errors.New("not all players are ready")
	ErrUnknownPlayer         = errors.New("player not in game")
	ErrNotYourTurn           = errors.New("it is not your turn")
	ErrInvalidCardIndex      = errors.New("invalid card index")
	ErrInvalidMove           = errors.New("card does not match top card")
	ErrGameNotStarted        = errors.New("game has not started")
	ErrGameFinished          = errors.New("game is finished")
	ErrDeckExhausted         = errors.New("draw pile and discard pile are exhausted")
	ErrTypingChallengeActive = errors.New("typing challenge in progress")
	ErrNoTypingChallenge     = errors.New("no typing challenge in progress")
	ErrNotChallenged         = errors.New("typing challenge belongs to another player")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrValidation, "VALIDATION_ERROR"},
	{ErrNameTaken, "NAME_TAKEN"},
	{ErrGameAlreadyStarted, "GAME_ALREADY_STARTED"},
	{ErrGameFull, "GAME_FULL"},
	{ErrPlayersNotReady, "PLAYERS_NOT_READY"},
	{ErrUnknownPlayer, "NOT_IN_GAME"},
	{ErrNotYourTurn, "NOT_YOUR_TURN"},
	{ErrInvalidCardIndex, "INVALID_CARD_INDEX"},
	{ErrInvalidMove, "INVALID_MOVE"},
	{ErrGameNotStarted, "GAME_NOT_STARTED"},
	{ErrGameFinished, "GAME_FINISHED"},
	{ErrDeckExhausted, "DECK_EXHAUSTED"},
	{ErrTypingChallengeActive, "TYPING_CHALLENGE_ACTIVE"},
	{ErrNoTypingChallenge, "NO_TYPING_CHALLENGE"},
	{ErrNotChallenged, "NOT_CHALLENGED"},
}

// ErrorCode maps an error to the code reported to clients.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL_ERROR"
}
