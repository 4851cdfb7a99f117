/* Copyright 2026 The Coxswain Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/coxswain-io/coxswain/core"
)

type MermaidOpts struct {
	// EffectFill is the fill color for effect nodes (task, run,
	// stream, timer, cron).
	EffectFill string `json:"effectFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given operation tree.
func Mermaid[A any](op *core.Op[A], w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			EffectFill: "#bcf2db",
		}
	}

	fmt.Fprintf(w, "graph TB\n")

	num := 0
	var walk func(op *core.Op[A]) string
	walk = func(op *core.Op[A]) string {
		num++
		nid := fmt.Sprintf("n%d", num)

		label := strings.Replace(opLabel(op), `"`, `'`, -1)
		switch op.Kind() {
		case core.OpConcat, core.OpMerge:
			fmt.Fprintf(w, "  %s((\"%s\"))\n", nid, label)
		case core.OpTask, core.OpRun, core.OpStream, core.OpTimer, core.OpCron:
			fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, label)
			if opts.EffectFill != "" {
				fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.EffectFill)
			}
		default:
			fmt.Fprintf(w, "  %s(\"%s\")\n", nid, label)
		}

		for _, kid := range op.Children() {
			kidID := walk(kid)
			fmt.Fprintf(w, "  %s --> %s\n", nid, kidID)
		}
		return nid
	}

	if op != nil {
		walk(op)
	}

	return nil
}
