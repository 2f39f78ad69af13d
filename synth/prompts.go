// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package synth

import (
	"fmt"

	"github.com/poiesic/receiptrag/core"
)

// promptTemplate is the system prompt and user prompt format for one query type.
// The user format receives the query and the receipt context, in that order.
type promptTemplate struct {
	system string
	user   string
}

const baseSystemPrompt = `You are a helpful assistant that answers questions about a user's purchase receipts.
Only use the receipts provided in the context. If the context does not contain the answer, say so.
Keep answers short and factual. Format money as dollars with two decimals, for example $52.30.`

var templates = map[core.QueryType]promptTemplate{
	core.QueryTypeSummary: {
		system: baseSystemPrompt + `
The user wants an aggregate. Add up the relevant amounts and state the total first,
then list the receipts that contributed to it.`,
		user: `Question: %s

Receipts:
%s

Give the total and a one-line breakdown per receipt.`,
	},
	core.QueryTypeQuestion: {
		system: baseSystemPrompt + `
Answer the user's question directly in one or two sentences, citing the receipt it comes from.`,
		user: `Question: %s

Receipts:
%s

Answer the question.`,
	},
	core.QueryTypeSearch: {
		system: baseSystemPrompt + `
The user is looking for receipts. Summarize which receipts are relevant and why.`,
		user: `Search: %s

Receipts:
%s

Summarize the relevant receipts.`,
	},
}

// buildPrompts returns the system and user prompts for a query type.
// Unknown types use the search prompts.
func buildPrompts(queryType core.QueryType, query, receiptContext string) (string, string) {
	tmpl, ok := templates[queryType]
	if !ok {
		tmpl = templates[core.QueryTypeSearch]
	}
	return tmpl.system, fmt.Sprintf(tmpl.user, query, receiptContext)
}
