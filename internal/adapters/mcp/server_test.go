package mcpadapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vietcare/medsearch/internal/core/domain"
)

type answerFake struct {
	answer *domain.Answer
	err    error
	lastQ  domain.SearchRequest
}

func (f *answerFake) Answer(_ context.Context, req domain.SearchRequest) (*domain.Answer, error) {
	f.lastQ = req
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type hospitalsFake struct {
	hospitals []domain.Hospital
	err       error
	lastQuery domain.HospitalQuery
}

func (f *hospitalsFake) FindNearby(_ context.Context, q domain.HospitalQuery) ([]domain.Hospital, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.hospitals, nil
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestMedicalSearchFormatsAnswerWithSources(t *testing.T) {
	answer := &answerFake{answer: &domain.Answer{
		Text: "Sốt xuất huyết do virus Dengue gây ra.",
		Sources: []domain.Candidate{
			{ID: "doc-1", Metadata: domain.Metadata{DiseaseName: "Sốt xuất huyết", Source: "moh.gov.vn"}},
		},
		Confidence: domain.ConfidenceHigh,
	}}
	srv := NewServer("test", answer, &hospitalsFake{})

	result, err := srv.handleMedicalSearch(context.Background(), toolRequest(map[string]any{
		"query": "sốt xuất huyết là gì",
		"top_k": 3,
	}))
	if err != nil {
		t.Fatalf("handleMedicalSearch() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "virus Dengue") {
		t.Fatalf("answer text missing: %s", text)
	}
	if !strings.Contains(text, "Sốt xuất huyết (moh.gov.vn)") {
		t.Fatalf("source citation missing: %s", text)
	}
	if answer.lastQ.TopK != 3 {
		t.Fatalf("top_k not forwarded, got %d", answer.lastQ.TopK)
	}
}

func TestMedicalSearchReportsMissingQuery(t *testing.T) {
	srv := NewServer("test", &answerFake{}, &hospitalsFake{})

	result, err := srv.handleMedicalSearch(context.Background(), toolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handleMedicalSearch() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestMedicalSearchReportsServiceFailureAsToolError(t *testing.T) {
	srv := NewServer("test", &answerFake{err: errors.New("model offline")}, &hospitalsFake{})

	result, err := srv.handleMedicalSearch(context.Background(), toolRequest(map[string]any{
		"query": "cúm mùa",
	}))
	if err != nil {
		t.Fatalf("handleMedicalSearch() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error when answer service fails")
	}
}

func TestFindHospitalsListsResults(t *testing.T) {
	hospitals := &hospitalsFake{hospitals: []domain.Hospital{
		{Name: "Bệnh viện Chợ Rẫy", DistanceKM: 1.2, Address: "Nguyễn Chí Thanh, TP.HCM", Phone: "+84 28 3855 4137"},
		{Name: "Bệnh viện Đại học Y Dược", DistanceKM: 2.4},
	}}
	srv := NewServer("test", &answerFake{}, hospitals)

	result, err := srv.handleFindHospitals(context.Background(), toolRequest(map[string]any{
		"lat":       10.76,
		"lon":       106.66,
		"radius_km": 3.0,
	}))
	if err != nil {
		t.Fatalf("handleFindHospitals() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "1. Bệnh viện Chợ Rẫy (1.2 km)") {
		t.Fatalf("first hospital missing: %s", text)
	}
	if !strings.Contains(text, "Địa chỉ: Nguyễn Chí Thanh, TP.HCM") {
		t.Fatalf("address missing: %s", text)
	}
	if hospitals.lastQuery.RadiusKM != 3.0 {
		t.Fatalf("radius not forwarded: %+v", hospitals.lastQuery)
	}
}

func TestFindHospitalsRequiresCoordinates(t *testing.T) {
	srv := NewServer("test", &answerFake{}, &hospitalsFake{})

	result, err := srv.handleFindHospitals(context.Background(), toolRequest(map[string]any{"lat": 10.76}))
	if err != nil {
		t.Fatalf("handleFindHospitals() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing lon")
	}
}

func TestFindHospitalsEmptyResult(t *testing.T) {
	srv := NewServer("test", &answerFake{}, &hospitalsFake{})

	result, err := srv.handleFindHospitals(context.Background(), toolRequest(map[string]any{
		"lat": 10.76, "lon": 106.66,
	}))
	if err != nil {
		t.Fatalf("handleFindHospitals() error = %v", err)
	}
	if !strings.Contains(resultText(t, result), "Không tìm thấy bệnh viện") {
		t.Fatalf("expected empty-result message")
	}
}
