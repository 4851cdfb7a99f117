package script

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jsccast/yaml"
)

// Def is a reducer definition: the 'reduce' code plus optional
// documentation, libraries, and initial state.
type Def struct {
	// Id is an optional name for the definition.
	Id string `json:"id,omitempty" yaml:"id,omitempty"`

	// Doc is optional markdown documentation.  See tools.RenderDefHTML.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Requires names JS libraries to inline ahead of Code.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// Code reads _.state and _.action, calls out(op) for follow-up
	// operations, and returns the next state (or null to keep it).
	Code string `json:"code" yaml:"code"`

	// Refresh and Static give the store's initial state.
	Refresh map[string]interface{} `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Static  map[string]interface{} `json:"static,omitempty" yaml:"static,omitempty"`
}

// Name returns the definition's id (or a placeholder).
func (d *Def) Name() string {
	if d == nil || d.Id == "" {
		return "reducer"
	}
	return d.Id
}

// InitialState builds the store's initial state from the definition.
func (d *Def) InitialState() State {
	s := NewState()
	if d.Refresh != nil {
		s.Refresh = d.Refresh
	}
	if d.Static != nil {
		s.Static = d.Static
	}
	return s
}

// Source aspires to hold the origin of a reducer definition: inline,
// at a URL ('file://' supported, with relative paths), or as literal
// text in JSON or YAML.
type Source struct {
	// URL is an optional pointer to a definition.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Text is an optional definition right here, as JSON or YAML.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Inline is an optional actual definition.
	Inline *Def `json:"inline,omitempty" yaml:",omitempty"`
}

// ResolveSource attempts to find and parse a definition.
//
// Examines .Inline, .URL, and .Text in that order.  The body is parsed
// as JSON when it starts with '{' and as YAML otherwise.
func ResolveSource(ctx context.Context, src *Source) (*Def, error) {
	if src.Inline != nil {
		return src.Inline, nil
	}

	var (
		body []byte
		err  error
	)

	if src.URL != "" {
		if strings.HasPrefix(src.URL, "file://") {
			filename := src.URL[7:]
			body, err = os.ReadFile(filename)
		} else {
			var resp *http.Response
			resp, err = http.Get(src.URL)
			if err != nil {
				return nil, err
			}
			body, err = io.ReadAll(resp.Body)
			resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
	}

	if src.Text != "" {
		body = []byte(src.Text)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("reducer source is empty")
	}

	var def Def
	switch body[0] {
	case '{':
		err = json.Unmarshal(body, &def)
	default:
		err = yaml.Unmarshal(body, &def)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// DefaultLibraryProvider resolves library names that are URLs with
// protocols of "file", "http", and "https".
func DefaultLibraryProvider(ctx context.Context, r *Reducer, name string) (string, error) {
	parts := strings.SplitN(name, "://", 2)
	if 2 != len(parts) {
		return "", fmt.Errorf("bad link '%s'", name)
	}
	switch parts[0] {
	case "file":
		bs, err := os.ReadFile(parts[1])
		if err != nil {
			return "", err
		}
		return string(bs), nil
	case "http", "https":
		req, err := http.NewRequest("GET", name, nil)
		if err != nil {
			return "", err
		}
		req = req.WithContext(ctx)
		client := http.Client{}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("library fetch status %s %d", resp.Status, resp.StatusCode)
		}
		bs, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(bs), nil
	default:
		return "", fmt.Errorf("unknown protocol '%s'", parts[0])
	}
}

// MakeMapLibraryProvider serves libraries from the given map.
func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, *Reducer, string) (string, error) {
	return func(ctx context.Context, r *Reducer, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}
