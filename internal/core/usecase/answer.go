package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/core/ports"
)

const answerSourceLimit = 3

// noResultAnswer is returned when retrieval finds nothing worth citing.
const noResultAnswer = "Xin lỗi, tôi không tìm thấy thông tin phù hợp trong cơ sở dữ liệu y tế để trả lời câu hỏi của bạn.\n\n" +
	"Khuyến cáo: Vui lòng tham khảo ý kiến bác sĩ chuyên khoa để được tư vấn chính xác và an toàn."

const safetyDisclaimer = "\n\nLưu ý: Thông tin trên chỉ mang tính chất tham khảo. Vui lòng tham khảo ý kiến bác sĩ chuyên khoa."

// AnswerUseCase runs retrieval and hands the top passages to the generator.
type AnswerUseCase struct {
	search    ports.SearchService
	generator ports.AnswerGenerator
}

func NewAnswerUseCase(search ports.SearchService, generator ports.AnswerGenerator) *AnswerUseCase {
	return &AnswerUseCase{search: search, generator: generator}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.SearchRequest) (*domain.Answer, error) {
	result, err := uc.search.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(result.Candidates) == 0 {
		return &domain.Answer{
			Text:       noResultAnswer,
			Sources:    []domain.Candidate{},
			Confidence: domain.ConfidenceNone,
		}, nil
	}

	sources := result.Candidates
	if len(sources) > answerSourceLimit {
		sources = sources[:answerSourceLimit]
	}

	text, err := uc.generator.GenerateAnswer(ctx, req.Query, sources)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	// The assistant must always point to professional care; append the
	// disclaimer when the model left it out.
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "bác sĩ") && !strings.Contains(lower, "khám") {
		text += safetyDisclaimer
	}

	return &domain.Answer{
		Text:       text,
		Sources:    sources,
		Confidence: result.Confidence,
	}, nil
}
