package dispatcher

import (
	"errors"
	"regexp"
)

var (
	ErrMissingArguments = errors.New("expected 3 arguments: recipient, subject and body")
	ErrItemIDNotFound   = errors.New("no 'Item ID:<number>' token found in alert body")
)

var itemIDPattern = regexp.MustCompile(`(?i)item\s*id:\s*(\d+)`)

// Alert is one invocation of the dispatcher by the Zabbix media type.
type Alert struct {
	Recipient string
	Subject   string
	Body      string
}

// ParseArgs maps the positional arguments Zabbix passes ({ALERT.SENDTO},
// {ALERT.SUBJECT}, {ALERT.MESSAGE}) onto an Alert. Extra arguments are
// ignored.
func ParseArgs(args []string) (Alert, error) {
	var a Alert
	if len(args) > 0 {
		a.Recipient = args[0]
	}
	if len(args) > 1 {
		a.Subject = args[1]
	}
	if len(args) > 2 {
		a.Body = args[2]
	}
	return a, a.Validate()
}

func (a Alert) Validate() error {
	if a.Recipient == "" || a.Subject == "" || a.Body == "" {
		return ErrMissingArguments
	}
	return nil
}

// ExtractItemID returns the digits following the first "item id:" token in
// body, case-insensitively and with or without the inner space.
func ExtractItemID(body string) (string, error) {
	m := itemIDPattern.FindStringSubmatch(body)
	if len(m) < 2 || m[1] == "" {
		return "", ErrItemIDNotFound
	}
	return m[1], nil
}

// GraphRequest is the JSON body posted to the gateway's /api/zabbix-graph.
type GraphRequest struct {
	Number  string `json:"number"`
	ItemID  string `json:"itemId"`
	Caption string `json:"caption"`
}

func NewGraphRequest(a Alert, itemID string) GraphRequest {
	return GraphRequest{
		Number:  a.Recipient,
		ItemID:  itemID,
		Caption: a.Subject + "\n\n" + a.Body,
	}
}
