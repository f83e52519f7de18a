package classify

import (
	"fmt"
	"strings"

	"github.com/luigisaetta/oraculum/pkg/models"
)

const routingPromptTemplate = `You are an AI assistant that can help decide what is the best action to serve a user request.
You will receive as input a user request in natural language and have to classify in one of
these categories: %[1]s.

Instructions:
- your answer must be in JSON format with key: classification
- value can be: %[1]s
- if the request needs to read data from database the classification must be: generate_sql
- if the request requires analysis of data from a LLM the classification must be: analyze_data
- if the request is for clarification or contains a question on a report you generated the classification must be: analyze_data
- if the request asks to drop a table, delete data, update data or insert data, the classification must be: not_allowed
- if the request is for an information you can directly provide, classification must be: answer_directly
- if you don't have enough information to classify, the classification must be: not_defined
- provide only the JSON result. Don't add other comments or questions.

Examples:
User Query: show the names of all employees who registered absences started in 2018 and the total hours reported
Classification: generate_sql

User Query: What is the total amount for invoices with a payment currency of USD from supplier 'CDW'?
Classification: generate_sql

User Query: What is the list of tables available?
Classification: generate_sql

User Query: Describe the table locations.
Classification: generate_sql

User Query: Analyze the data provided and generate a report.
Classification: analyze_data

User Query: Ok, but I want the data organized in a table.
Classification: analyze_data

User Query: Identify trends and patterns in the provided data.
Classification: analyze_data

User Query: What are the kind of questions I can ask on these data?
Classification: analyze_data

User Query: I want you to do a bunch of things.
Classification: not_defined

User Query: Drop the table employees.
Classification: not_allowed

User Query: Who is Larry Ellison?
Classification: answer_directly`

// routingPrompt returns the classification instructions with the closed
// label set substituted in.
func routingPrompt() string {
	labels := models.AllLabels()
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = string(l)
	}
	return fmt.Sprintf(routingPromptTemplate, strings.Join(names, ", "))
}
