package oracle

import "fmt"

// Prompts sent to the backends. Cloud backends get a system prompt plus a
// user message; the local backend gets a single prompt.
const (
	ImageSystemPrompt = "You are a helpful assistant that responds in Markdown. Help me analyze this image for a call to action."
	ImageUserPrompt   = "Analyze the following image for a call to action. Return a score from 0 to 1 in increments of 0.1 based on the likelihood it contains a call to action."

	TextSystemPrompt = "You work in marketing at a university and you analyze text."

	localImagePrompt = ImageSystemPrompt + " " + ImageUserPrompt +
		" Your response should always start with 'Score: ' followed by the number. Then provide a brief reasoning."
)

// TextUserPrompt wraps caption text for the cloud text prompt.
func TextUserPrompt(text string) string {
	return fmt.Sprintf("Analyze the following text for a call to action. The text is:\n\n%s\n\n"+
		"Return a score from 0 to 1 in increments of 0.1 based on the likelihood it contains a call to action.", text)
}

// LocalImagePrompt is the single prompt sent with an image to a local model.
func LocalImagePrompt() string {
	return localImagePrompt
}

// LocalTextPrompt asks a local model for a labeled score and reasoning.
func LocalTextPrompt(text string) string {
	return fmt.Sprintf("%s Analyze the following text for a call to action. The text is:\n\n%s\n\n"+
		"Return a score from 0 to 1 in increments of 0.1 based on the likelihood it contains a call to action.\n"+
		"Respond in the following format:\n"+
		"Score: [Your score]\n"+
		"Reasoning: [Your reasoning]", TextSystemPrompt, text)
}
