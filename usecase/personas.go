package usecase

import "github.com/satriahrh/genui-relay/domain/entities"

var personaPrompts = map[entities.Language]string{
	entities.LanguageEnglish: "You are a friendly voice assistant on a phone-style call. " +
		"Reply in English with one to three short spoken sentences. " +
		"Never use markdown, lists, code or emoji because your reply is read aloud.",
	entities.LanguageArabic: "أنت مساعد صوتي ودود في مكالمة هاتفية. " +
		"أجب باللغة العربية الفصحى بجملة إلى ثلاث جمل قصيرة مناسبة للنطق. " +
		"لا تستخدم التنسيق أو القوائم أو الرموز التعبيرية لأن ردك سيُقرأ بصوت عالٍ.",
}

// PersonaPrompt returns the system message text for a call in lang
func PersonaPrompt(lang entities.Language) string {
	if prompt, ok := personaPrompts[lang]; ok {
		return prompt
	}
	return personaPrompts[entities.LanguageEnglish]
}
