// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	_ "embed" // the text template is embedded
	"fmt"
	"io"
	"text/template"

	"github.com/awslabs/cryptoslice/internal/formatutil"
)

//go:embed template.txt
var textTemplate string

// WriteText writes the report in the format of the command line, colored when colors are enabled
func WriteText(w io.Writer, r *Report) error {
	t, err := template.New("report").Funcs(textFuncMap()).Parse(textTemplate)
	if err != nil {
		return err
	}
	return t.Execute(w, r)
}

func textFuncMap() template.FuncMap {
	return template.FuncMap{
		"bold":     formatutil.Bold,
		"faint":    formatutil.Faint,
		"sanitize": formatutil.Sanitize,
		"verdict": func(secure bool) string {
			if secure {
				return formatutil.Green("secure")
			}
			return formatutil.Red("insecure")
		},
		"summary": func(r *Report) string {
			s := fmt.Sprintf("%d findings, %d insecure", len(r.Findings), r.Insecure())
			if r.Insecure() > 0 {
				return formatutil.Red(s)
			}
			return formatutil.Green(s)
		},
	}
}
