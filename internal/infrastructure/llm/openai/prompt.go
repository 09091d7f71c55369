package openai

import (
	"fmt"
	"strings"

	"github.com/vietcare/medsearch/internal/core/domain"
)

func buildExpansionPrompt(question string, n int) string {
	return fmt.Sprintf(`Bạn là chuyên gia y tế. Hãy tạo %d câu hỏi TƯƠNG TỰ (không giống hệt) với câu hỏi gốc.

Câu hỏi gốc: "%s"

Yêu cầu:
- Giữ nguyên ý nghĩa y tế
- Dùng từ đồng nghĩa hoặc cách diễn đạt khác
- Mỗi câu trên 1 dòng
- KHÔNG giải thích, CHỈ trả về %d câu hỏi

Ví dụ:
Câu gốc: "Sốt cao là bao nhiêu độ?"
Câu 1: Nhiệt độ cơ thể bao nhiêu được coi là sốt cao?
Câu 2: Sốt trên bao nhiêu độ C là nguy hiểm?
`, n, question, n)
}

const answerSystemPrompt = `Bạn là Bác sĩ AI với 10 năm kinh nghiệm lâm sàng, chuyên tư vấn sức khỏe cho người Việt Nam.

QUY TẮC BẮT BUỘC:
1. CHỈ sử dụng thông tin từ [Nguồn] được cung cấp
2. KHÔNG chẩn đoán chắc chắn (dùng "có thể", "khả năng")
3. KHÔNG kê đơn thuốc cụ thể
4. LUÔN khuyến cáo đi khám bác sĩ nếu:
   - Triệu chứng kéo dài hơn 3 ngày
   - Sốt cao trên 39 độ C
   - Có dấu hiệu nguy hiểm: khó thở, đau ngực, co giật

PHONG CÁCH:
- Bắt đầu bằng "Chào bạn,"
- Chia thành 2-3 đoạn ngắn
- Giọng điệu thân thiện, không gây hoảng loạn`

func buildAnswerPrompt(question string, passages []domain.Candidate) string {
	var contextBuilder strings.Builder
	for idx, p := range passages {
		contextBuilder.WriteString(fmt.Sprintf(
			"[Nguồn %d] Bệnh: %s\n- Triệu chứng: %s\n- Điều trị: %s\n- Phòng ngừa: %s\n- Độ liên quan: %.2f\n\n",
			idx+1,
			orNA(p.Metadata.DiseaseName),
			orNA(p.Metadata.Symptoms),
			orNA(p.Metadata.Treatment),
			orNA(p.Metadata.Prevention),
			p.FinalScore,
		))
	}

	return fmt.Sprintf(`Câu hỏi hiện tại: %s

【Thông tin y tế từ cơ sở dữ liệu】
%s
Hãy trả lời theo đúng quy tắc.`, question, contextBuilder.String())
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
