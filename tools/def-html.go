package tools

import (
	"encoding/json"
	"fmt"
	"html"
	"io"

	"github.com/coxswain-io/coxswain/script"

	md "github.com/russross/blackfriday/v2"
)

// RenderDefHTML renders a reducer definition as an HTML fragment:
// the markdown doc, the required libraries, and the code.
func RenderDefHTML(def *script.Def, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="defDoc doc">%s</div>`, md.Run([]byte(def.Doc)))

	if 0 < len(def.Requires) {
		f(`<div class="requires"><table>`)
		for i, name := range def.Requires {
			f(`<tr><td><div class="requireNum">%d</div></td><td><code>%s</code></td></tr>`,
				i, html.EscapeString(name))
		}
		f(`</table></div>`)
	}

	f(`<div class="code"><pre>%s</pre></div>`, html.EscapeString(def.Code))

	if def.Refresh != nil || def.Static != nil {
		initial := def.InitialState()
		js, err := json.MarshalIndent(&initial, "", "  ")
		if err != nil {
			return err
		}
		f(`<div class="initialState"><code><pre>%s</pre></code></div>`, js)
	}

	return nil
}

// RenderDefPage renders a reducer definition as a complete HTML page.
func RenderDefPage(def *script.Def, out io.Writer, cssFiles []string) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/def-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, html.EscapeString(def.Name()))

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(def.Name()))

	if err := RenderDefHTML(def, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}
