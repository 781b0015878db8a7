package triage

import "context"

// Service composes the normalizer, classifier and localizer into the single
// symptom-check operation the API exposes.
type Service struct {
	normalizer *Normalizer
	classifier *Classifier
	localizer  *Localizer
}

func NewService(normalizer *Normalizer, classifier *Classifier, localizer *Localizer) *Service {
	return &Service{
		normalizer: normalizer,
		classifier: classifier,
		localizer:  localizer,
	}
}

// CheckSymptom routes a free-text symptom description to a department and
// renders guidance in the patient's language. The only error it can return
// is ErrInvalidInput; oracle trouble surfaces as fallback-sourced results.
func (s *Service) CheckSymptom(ctx context.Context, utterance, lang string) (ClassificationResult, error) {
	req, err := s.normalizer.Normalize(utterance, lang)
	if err != nil {
		return ClassificationResult{}, err
	}

	result := s.classifier.Classify(ctx, req)
	result.Guidance = s.localizer.Localize(ctx, result.DepartmentID, req.Language)
	return result, nil
}
