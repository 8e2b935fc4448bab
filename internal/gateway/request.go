package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

var errItemIDNotNumeric = errors.New(`"itemId" must be numeric`)

type messageRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

func (m *messageRequest) fromForm(v url.Values) {
	m.Number = v.Get("number")
	m.Message = v.Get("message")
}

type graphRequest struct {
	Number  string     `json:"number"`
	ItemID  flexString `json:"itemId"`
	Caption string     `json:"caption"`
}

func (g *graphRequest) fromForm(v url.Values) {
	g.Number = v.Get("number")
	g.ItemID = flexString(v.Get("itemId"))
	g.Caption = v.Get("caption")
}

type formFiller interface {
	fromForm(url.Values)
}

// decodeRequest accepts JSON as well as urlencoded and multipart form
// bodies, matching what Zabbix webhook scripts and curl users send.
func decodeRequest(r *http.Request, dst formFiller) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
		dst.fromForm(r.PostForm)
		return nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return fmt.Errorf("invalid multipart body: %w", err)
		}
		// file parts are never used on these routes
		defer r.MultipartForm.RemoveAll()
		dst.fromForm(r.PostForm)
		return nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	// an empty body falls through to the missing-parameter check
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// flexString accepts a JSON string or number. Zabbix macros expand item ids
// unquoted in some webhook templates.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("itemId: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
