package payment

import "context"

// StaticToken is a bearer token known up front, such as the member's session
// token taken from the incoming request or the reconciler's service token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
