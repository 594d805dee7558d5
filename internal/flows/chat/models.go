// internal/flows/chat/models.go
package chat

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one prior message, oldest first.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Input struct {
	Message string `json:"message"`
	History []Turn `json:"history,omitempty"`
}

func (i *Input) HasHistory() bool {
	return len(i.History) > 0
}

type Output struct {
	Response string `json:"response"`
}
