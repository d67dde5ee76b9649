package rag

// systemPrompt constrains the model to the supplied case-law fragments. The
// product is Russian-language only, so the prompt and the expected answer
// language are fixed.
const systemPrompt = `Ты — юридический ассистент. Отвечай на вопросы пользователя, опираясь только на приведённые фрагменты судебной практики. Если в контексте нет подходящей информации, так и скажи. Отвечай кратко и по делу, на русском языке.`

// noContextNotice is appended to the question when retrieval found nothing,
// so the model reports the empty result instead of answering from memory.
const noContextNotice = "(Контекст по делам не найден — ответь, что по заданному запросу релевантных дел в базе нет.)"

// Prompts is the pair of messages sent to the completion backend.
type Prompts struct {
	// System is the system prompt.
	System string
	// User is the user prompt carrying the question and, when present, the context.
	User string
}

// BuildPrompts returns the system and user prompts for question. The user
// prompt takes one of two shapes depending only on whether contextText is
// empty: context followed by the question, or the question followed by an
// explicit instruction to state that no relevant cases exist.
func BuildPrompts(question, contextText string) Prompts {
	if contextText == "" {
		return Prompts{
			System: systemPrompt,
			User:   "Вопрос пользователя: " + question + "\n\n" + noContextNotice,
		}
	}
	return Prompts{
		System: systemPrompt,
		User: "Контекст (фрагменты судебных дел):\n\n" + contextText +
			"\n\n---\n\nВопрос пользователя: " + question,
	}
}
