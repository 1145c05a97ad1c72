package flashcard

import (
	"fmt"
	"strings"

	"studybot/internal/vectorstore"
)

const promptTemplate = `You are an educational content creator specializing in generating effective flashcards for student learning.
Based on the provided document content, create clear, educational flashcards that test key concepts, definitions, and important information.

Document Content:
{content}

Instructions:
- Generate 5-10 high-quality flashcards
- Create clear, specific questions that test understanding
- Provide comprehensive but concise answers
- Focus on key concepts, definitions, facts, and relationships
- Vary difficulty levels (easy, medium, hard)
- Include relevant tags/topics for each card
- Ensure questions are answerable from the provided content

Generate flashcards in this exact JSON format:
[
  {
    "question": "Clear, specific question",
    "answer": "Comprehensive but concise answer",
    "difficulty": "easy|medium|hard",
    "tags": ["tag1", "tag2"],
    "sourceChunk": "Original text excerpt this card is based on"
  }
]

Flashcards:`

// BuildContent labels each chunk "[Chunk N]" and joins them with blank lines.
func BuildContent(chunks []vectorstore.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[Chunk %d]\n%s", i+1, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

func RenderPrompt(content string) string {
	return strings.Replace(promptTemplate, "{content}", content, 1)
}
