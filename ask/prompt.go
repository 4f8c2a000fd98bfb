package ask

import "strings"

const (
	summaryPromptEN = `You answer questions about the user's personal email archive.
Use ONLY the provided documents. If they do not contain the answer, say so
plainly. Be concise and factual; do not invent senders, dates or amounts.
Answer in English.`

	summaryPromptTR = `Kullanıcının kişisel e-posta arşiviyle ilgili soruları yanıtlıyorsun.
YALNIZCA verilen dokümanları kullan. Cevap dokümanlarda yoksa bunu açıkça
söyle. Kısa ve olgusal yaz; gönderen, tarih veya tutar uydurma.
Türkçe yanıt ver.`

	emailPromptEN = `You draft an email on behalf of the user, based on the provided
documents from their email archive. Output EXACTLY two sections:
SUBJECT: <one line>
BODY: <the email body>
No other text before or after.`

	emailPromptTR = `Kullanıcı adına, e-posta arşivinden verilen dokümanlara dayanarak
bir e-posta taslağı yazıyorsun. Çıktı TAM OLARAK iki bölümden oluşur:
SUBJECT: <tek satır>
BODY: <e-posta gövdesi>
Öncesinde veya sonrasında başka metin olmasın.`
)

const (
	emptyResultTR = "Eşleşen doküman bulunamadı."
	emptyResultEN = "No matching documents found."
)

func summaryPrompt(lang string) string {
	if lang == "tr" {
		return summaryPromptTR
	}
	return summaryPromptEN
}

func emailPrompt(lang string) string {
	if lang == "tr" {
		return emailPromptTR
	}
	return emailPromptEN
}

func emptyResultMessage(lang string) string {
	if lang == "tr" {
		return emptyResultTR
	}
	return emptyResultEN
}

// toneInstruction phrases the requested email register for the model.
func toneInstruction(tone, lang string) string {
	if lang == "tr" {
		switch tone {
		case "formal":
			return "Resmi ve saygılı bir üslup kullan."
		case "friendly":
			return "Samimi ve sıcak bir üslup kullan."
		default:
			return "Doğal, nötr bir üslup kullan."
		}
	}
	switch tone {
	case "formal":
		return "Use a formal, respectful tone."
	case "friendly":
		return "Use a warm, friendly tone."
	default:
		return "Use a natural, neutral tone."
	}
}

// parseEmailOutput scans model output for the SUBJECT:/BODY: sections.
// Missing sections come back empty; the caller applies fallbacks.
func parseEmailOutput(out string) (subject, body string) {
	lines := strings.Split(out, "\n")
	inBody := false
	var bodyLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case !inBody && strings.HasPrefix(strings.ToUpper(trimmed), "SUBJECT:"):
			subject = strings.TrimSpace(trimmed[len("SUBJECT:"):])
		case !inBody && strings.HasPrefix(strings.ToUpper(trimmed), "BODY:"):
			inBody = true
			if rest := strings.TrimSpace(trimmed[len("BODY:"):]); rest != "" {
				bodyLines = append(bodyLines, rest)
			}
		case inBody:
			bodyLines = append(bodyLines, line)
		}
	}
	return subject, strings.TrimSpace(strings.Join(bodyLines, "\n"))
}

// fallbackEmailBody builds a minimal draft when the model output had no
// usable body: greeting, the request itself, sign-off.
func fallbackEmailBody(question, recipient, senderName, lang string) string {
	var b strings.Builder
	if lang == "tr" {
		if recipient != "" {
			b.WriteString("Sayın " + recipient + ",\n\n")
		} else {
			b.WriteString("Merhaba,\n\n")
		}
		b.WriteString(question + "\n\n")
		b.WriteString("Saygılarımla,")
	} else {
		if recipient != "" {
			b.WriteString("Dear " + recipient + ",\n\n")
		} else {
			b.WriteString("Hello,\n\n")
		}
		b.WriteString(question + "\n\n")
		b.WriteString("Best regards,")
	}
	if senderName != "" {
		b.WriteString("\n" + senderName)
	}
	return b.String()
}
