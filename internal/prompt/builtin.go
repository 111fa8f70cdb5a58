package prompt

// Built-in template names.
const (
	Analyze  = "analyze"
	Research = "research"
)

var builtinTemplates = map[string]string{
	Analyze:  analyzeTemplate,
	Research: researchTemplate,
}

const analyzeTemplate = `Analyze the following source code from {{file_name}}:

{{code}}

`

const researchTemplate = `Research question: {{question}}

Analyze the following source code from {{file_name}} and rate how relevant it is to the research question.
{{#if language}}The file is written in {{language}}.
{{/if}}
{{code}}

Answer strictly with a single JSON object and nothing else, in exactly this shape:
{"relevance": <number from 0 to 100>, "reason": "<one or two sentences>"}
`
