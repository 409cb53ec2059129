package templates

import "encoding/json"

// pairArraySchema builds the common output schema: a JSON array of
// objects with required input/output string fields.
func pairArraySchema(inputDesc, outputDesc string) json.RawMessage {
	schema := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input":  map[string]any{"type": "string", "description": inputDesc},
				"output": map[string]any{"type": "string", "description": outputDesc},
			},
			"required": []string{"input", "output"},
		},
	}
	raw, _ := json.Marshal(schema)
	return raw
}

func mustBuiltin(name, typ, systemPrompt, userTemplate string, schema json.RawMessage) *Template {
	t, err := New(name, typ, systemPrompt, userTemplate, schema)
	if err != nil {
		panic("builtin template " + name + ": " + err.Error())
	}
	return t
}

var builtinTemplates = []*Template{
	mustBuiltin("qa", "qa",
		"You are a high-quality training-data generator. Given a text passage, "+
			"produce question-answer pairs that test comprehension of the key facts, "+
			"concepts, and relationships in the text. Each question should be "+
			"self-contained and answerable solely from the passage.\n\n"+
			"Return your output as a JSON array of objects. Each object must have "+
			`exactly two keys: "input" (the question) and "output" (the answer). `+
			"Do not include any text outside the JSON array.",
		"Generate {{.num_examples}} question-answer pairs from the following text:\n\n"+
			"---\n{{.content}}\n---\n\n"+
			"{{if .title}}Source: {{.title}}\n\n{{end}}"+
			"Return your response as a JSON array.",
		pairArraySchema("A question about the content.", "The correct answer derived from the content.")),

	mustBuiltin("summarization", "summarization",
		"You are a high-quality training-data generator specializing in "+
			"summarization. Given a text passage, produce training examples where "+
			`each example contains a passage ("input") and a concise, accurate `+
			`summary of that passage ("output"). The summaries should capture the `+
			"main ideas while being significantly shorter than the original text.\n\n"+
			"Return your output as a JSON array of objects. Each object must have "+
			`exactly two keys: "input" (the passage or a section of the passage) `+
			`and "output" (the summary). `+
			"Do not include any text outside the JSON array.",
		"Generate {{.num_examples}} summarization training examples from the "+
			"following text. For each example, select a meaningful section of the "+
			"text as the input and write a concise summary as the output.\n\n"+
			"---\n{{.content}}\n---\n\n"+
			"{{if .title}}Source: {{.title}}\n\n{{end}}"+
			"{{if .summary_style}}Desired summary style: {{.summary_style}}\n\n{{end}}"+
			"Return your response as a JSON array.",
		pairArraySchema("A passage of text to be summarized.", "A concise summary of the passage.")),

	mustBuiltin("classification", "classification",
		"You are a high-quality training-data generator specializing in text "+
			"classification. Given a text passage and a set of category labels, "+
			"produce training examples where each example contains a short text "+
			`snippet ("input") and the most appropriate category label ("output"). `+
			"The generated texts should be realistic and clearly belong to the "+
			"assigned category.\n\n"+
			"Return your output as a JSON array of objects. Each object must have "+
			`exactly two keys: "input" (the text to classify) and "output" (the `+
			"category label). "+
			"Do not include any text outside the JSON array.",
		"Generate {{.num_examples}} classification training examples inspired by "+
			"the following text:\n\n"+
			"---\n{{.content}}\n---\n\n"+
			"{{if .labels}}Use ONLY the following labels: {{join .labels}}\n\n{{end}}"+
			"{{if .title}}Source: {{.title}}\n\n{{end}}"+
			"Return your response as a JSON array.",
		pairArraySchema("A text snippet to be classified.", "The category label for the text.")),

	mustBuiltin("instruction", "instruction",
		"You are a high-quality training-data generator specializing in "+
			"instruction-following examples. Given a text passage, produce training "+
			"pairs where each pair consists of a clear, actionable instruction "+
			`("input") and a detailed, helpful response ("output") that draws on `+
			"information from the passage. The instructions should feel natural -- "+
			"the kind a real user might ask -- and the responses should be thorough "+
			"yet concise.\n\n"+
			"Return your output as a JSON array of objects. Each object must have "+
			`exactly two keys: "input" (the instruction) and "output" (the response). `+
			"Do not include any text outside the JSON array.",
		"Generate {{.num_examples}} instruction-response training examples from "+
			"the following text:\n\n"+
			"---\n{{.content}}\n---\n\n"+
			"{{if .title}}Source: {{.title}}\n\n{{end}}"+
			"{{if .difficulty}}Target difficulty level: {{.difficulty}}\n\n{{end}}"+
			"Return your response as a JSON array.",
		pairArraySchema("An instruction or task for the model to follow.", "A detailed response to the instruction.")),
}
