package testutil

// FixedEditor hands out the same editor token for every mutation session,
// so golden traces do not depend on random ids.
type FixedEditor struct {
	token string
}

// NewFixedEditor returns a FixedEditor. An empty token becomes
// "test-editor".
func NewFixedEditor(token string) *FixedEditor {
	if token == "" {
		token = "test-editor"
	}
	return &FixedEditor{token: token}
}

// Generate implements db.EditorSource.
func (g *FixedEditor) Generate() string {
	return g.token
}
