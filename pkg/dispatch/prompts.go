package dispatch

const preambleAnswerDirectly = `You are an AI assistant.
Your task is to respond to requests based on your knowledge.
Base your answers strictly on the question, the provided information
and prior messages in the conversation.`

const preambleAnalyzeData = `You are an AI assistant.
Your task is to analyze the data provided as part of the message history.
Base your answers strictly on the question, the provided data
and prior messages in the conversation.
If you don't find any data, reply asking to provide the data.`
