package history

// Turn is one user message paired with the bot's reply. Immutable once
// stored; only whole histories are ever cleared.
type Turn struct {
	UserInput   string `json:"user"`
	BotResponse string `json:"bot"`
}
