package rag

import (
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

// GeneralDisclaimer opens every general-knowledge answer.
const GeneralDisclaimer = "This information is not present in the uploaded documents, but generally..."

// SummaryNoDocsAnswer is returned when a summary is requested and nothing is
// left after filtering.
const SummaryNoDocsAnswer = "No documents have been uploaded yet. Please upload a PDF to get a summary."

// Params are the generation settings for one mode.
type Params struct {
	Temperature float64
	MaxTokens   int
}

var modeParams = map[domain.Mode]Params{
	domain.ModeConversational:   {Temperature: 0.3, MaxTokens: 150},
	domain.ModeSummary:          {Temperature: 0.2, MaxTokens: 800},
	domain.ModeDocument:         {Temperature: 0.15, MaxTokens: 600},
	domain.ModeGeneralKnowledge: {Temperature: 0.2, MaxTokens: 400},
}

// ParamsFor returns the generation settings used for mode.
func ParamsFor(mode domain.Mode) Params {
	return modeParams[mode]
}

const documentSystemPrompt = `You are a document-grounded assistant.

Rules:
1. Answer only from the document context provided.
2. Do not use outside knowledge when context is present.
3. If the context only partly covers the question, say "Based on the available document content".
4. Never invent details, page numbers, quotes or citations.
5. Keep the answer short and clearly structured.

Format:
- Direct answer from the context
- Bullet points for lists
- Quote relevant passages when useful`

const summarySystemPrompt = `You summarize documents.

You are given text extracted from the user's uploaded PDF.

Task:
- Write an accurate summary of the provided content only.
- Do not use outside knowledge.
- Do not claim the document is missing.
- If the content is partial, summarize what is there.

Format:
- Main topic or purpose first
- Key points as bullets
- One closing takeaway`

const generalSystemPrompt = `You are a helpful assistant. The user's question could not be answered from their uploaded documents.

Rules:
1. Give a short general explanation, two or three sentences at most.
2. Begin with: "` + GeneralDisclaimer + `"
3. Stay factual and neutral.
4. Do not refer to any document.`

const conversationalSystemPrompt = `You are a friendly document assistant. Reply naturally to casual messages.

Keep replies brief. When it helps, explain that the user can upload PDFs and ask questions about them.`

func documentUserPrompt(contextBlock, question string) string {
	return fmt.Sprintf("Context from uploaded documents:\n%s\n\nUser question: %s\n\nAnswer using only the context above. Be precise and factual.", contextBlock, question)
}

func summaryUserPrompt(contextBlock string) string {
	return fmt.Sprintf("Document content:\n%s\n\nSummarize this document content. Cover the main topics, the key points and the overall purpose.", contextBlock)
}

func generalUserPrompt(question string) string {
	return fmt.Sprintf("The user asked: %s\n\nThis cannot be answered from their uploaded documents. Give a brief general answer. Start with: %q", question, GeneralDisclaimer)
}

func conversationalUserPrompt(question string) string {
	return fmt.Sprintf("User said: %s\n\nRespond naturally and helpfully.", question)
}

// NormalizeAnswer trims every line and drops the blank ones.
func NormalizeAnswer(answer string) string {
	lines := strings.Split(answer, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, "\n")
}

// ensureDisclaimer prefixes the disclaimer when the model left it out.
func ensureDisclaimer(answer string) string {
	if strings.Contains(strings.ToLower(answer), "not present in the uploaded documents") {
		return answer
	}
	if answer == "" {
		return GeneralDisclaimer
	}
	return GeneralDisclaimer + "\n" + answer
}
