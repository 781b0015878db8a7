package triage

import (
	"context"
	"time"
)

// TranslationUnavailableMarker prefixes guidance that could not be rendered
// in the patient's language and fell back to the default language.
const TranslationUnavailableMarker = "[translation unavailable] "

// Localizer renders the guidance message for a department in the patient's
// language. Chain: oracle translation, then a stored phrase for the
// (department, language) pair, then the default-language phrase with the
// translation-unavailable marker. It never fails for a known department.
type Localizer struct {
	oracle          Oracle
	phrases         map[string]map[string]string // department id -> lang -> phrase
	defaultLanguage string
	oracleTimeout   time.Duration
	degrade         DegradeRecorder
}

func NewLocalizer(oracle Oracle, phrases map[string]map[string]string, defaultLanguage string, oracleTimeout time.Duration, degrade DegradeRecorder) *Localizer {
	if degrade == nil {
		degrade = NoopDegradeRecorder{}
	}
	return &Localizer{
		oracle:          oracle,
		phrases:         phrases,
		defaultLanguage: defaultLanguage,
		oracleTimeout:   oracleTimeout,
		degrade:         degrade,
	}
}

func (l *Localizer) Localize(ctx context.Context, departmentID, lang string) string {
	if l.oracle != nil {
		octx, cancel := context.WithTimeout(ctx, l.oracleTimeout)
		text, err := l.oracle.Translate(octx, "guidance/"+departmentID, lang)
		cancel()
		if err == nil {
			return text
		}
		l.degrade.RecordOracleFallback(ctx, "translate", "error")
	}

	perLang := l.phrases[departmentID]
	if perLang == nil {
		perLang = l.phrases[genericGuidanceKey]
	}

	if phrase, ok := perLang[lang]; ok {
		return phrase
	}

	phrase := perLang[l.defaultLanguage]
	if lang == l.defaultLanguage {
		return phrase
	}
	return TranslationUnavailableMarker + phrase
}

const genericGuidanceKey = "_generic"

// DefaultGuidancePhrases covers the seeded departments. English is complete;
// other languages are filled in where the clinic has reviewed translations.
func DefaultGuidancePhrases() map[string]map[string]string {
	return map[string]map[string]string{
		"cardiology": {
			"en": "Your symptoms may be heart-related. We recommend a consultation with our Cardiology department. If you have severe chest pain right now, call emergency services immediately.",
			"es": "Sus síntomas pueden estar relacionados con el corazón. Recomendamos una consulta con nuestro departamento de Cardiología. Si tiene dolor de pecho intenso ahora mismo, llame a emergencias de inmediato.",
			"hi": "आपके लक्षण हृदय से संबंधित हो सकते हैं। हम कार्डियोलॉजी विभाग में परामर्श की सलाह देते हैं। यदि अभी सीने में तेज दर्द है, तो तुरंत आपातकालीन सेवाओं को कॉल करें।",
		},
		"dermatology": {
			"en": "Your symptoms point to a skin condition. We recommend a consultation with our Dermatology department.",
			"es": "Sus síntomas apuntan a una afección de la piel. Recomendamos una consulta con nuestro departamento de Dermatología.",
		},
		"gastroenterology": {
			"en": "Your symptoms may be digestive. We recommend a consultation with our Gastroenterology department. Stay hydrated in the meantime.",
			"te": "మీ లక్షణాలు జీర్ణ సంబంధమైనవి కావచ్చు. మా గ్యాస్ట్రోఎంటరాలజీ విభాగంలో సంప్రదింపును సిఫార్సు చేస్తున్నాము.",
		},
		"general-medicine": {
			"en": "We recommend a consultation with our General Medicine department. A doctor will assess your symptoms and refer you onward if needed.",
			"es": "Recomendamos una consulta con nuestro departamento de Medicina General. Un médico evaluará sus síntomas y lo derivará si es necesario.",
			"hi": "हम सामान्य चिकित्सा विभाग में परामर्श की सलाह देते हैं। डॉक्टर आपके लक्षणों का आकलन करेंगे और आवश्यकता होने पर आगे रेफर करेंगे।",
			"fr": "Nous recommandons une consultation avec notre service de médecine générale. Un médecin évaluera vos symptômes et vous orientera si nécessaire.",
		},
		"neurology": {
			"en": "Your symptoms may be neurological. We recommend a consultation with our Neurology department.",
		},
		"orthopedics": {
			"en": "Your symptoms suggest a bone or joint issue. We recommend a consultation with our Orthopedics department.",
		},
		"pediatrics": {
			"en": "For children's health concerns we recommend a consultation with our Pediatrics department.",
		},
		genericGuidanceKey: {
			"en": "We recommend a consultation with one of our doctors, who will assess your symptoms in person.",
		},
	}
}
