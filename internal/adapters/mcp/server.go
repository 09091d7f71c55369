// Package mcpadapter exposes retrieval and hospital lookup as MCP tools so
// desktop assistants can call the service over stdio.
package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/core/ports"
)

type Server struct {
	answer    ports.AnswerService
	hospitals ports.HospitalLocator
	mcpServer *server.MCPServer
}

func NewServer(version string, answer ports.AnswerService, hospitals ports.HospitalLocator) *Server {
	s := &Server{
		answer:    answer,
		hospitals: hospitals,
	}

	mcpServer := server.NewMCPServer("medsearch", version, server.WithToolCapabilities(false))

	mcpServer.AddTool(mcp.NewTool("medical_search",
		mcp.WithDescription("Tra cứu thông tin y tế tiếng Việt: triệu chứng, điều trị, phòng ngừa bệnh."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Câu hỏi y tế bằng tiếng Việt."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Số kết quả tối đa."),
		),
	), s.handleMedicalSearch)

	mcpServer.AddTool(mcp.NewTool("find_hospitals",
		mcp.WithDescription("Tìm bệnh viện gần một tọa độ."),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Vĩ độ.")),
		mcp.WithNumber("lon", mcp.Required(), mcp.Description("Kinh độ.")),
		mcp.WithNumber("radius_km", mcp.Description("Bán kính tìm kiếm, km.")),
		mcp.WithString("specialty", mcp.Description("Lọc theo chuyên khoa.")),
	), s.handleFindHospitals)

	s.mcpServer = mcpServer
	return s
}

// ServeStdio blocks until stdin closes or the process is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleMedicalSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	answer, err := s.answer.Answer(ctx, domain.SearchRequest{
		Query: query,
		TopK:  request.GetInt("top_k", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		sb.WriteString("\n\nNguồn tham khảo:\n")
		for i, src := range answer.Sources {
			name := src.Metadata.DiseaseName
			if name == "" {
				name = src.ID
			}
			fmt.Fprintf(&sb, "%d. %s", i+1, name)
			if src.Metadata.Source != "" {
				fmt.Fprintf(&sb, " (%s)", src.Metadata.Source)
			}
			sb.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleFindHospitals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := request.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lon, err := request.RequireFloat("lon")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hospitals, err := s.hospitals.FindNearby(ctx, domain.HospitalQuery{
		Lat:       lat,
		Lon:       lon,
		RadiusKM:  request.GetFloat("radius_km", 0),
		Specialty: request.GetString("specialty", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hospitals) == 0 {
		return mcp.NewToolResultText("Không tìm thấy bệnh viện nào trong bán kính yêu cầu."), nil
	}

	var sb strings.Builder
	for i, h := range hospitals {
		fmt.Fprintf(&sb, "%d. %s (%.1f km)", i+1, h.Name, h.DistanceKM)
		if h.Address != "" {
			fmt.Fprintf(&sb, "\n   Địa chỉ: %s", h.Address)
		}
		if h.Phone != "" {
			fmt.Fprintf(&sb, "\n   Điện thoại: %s", h.Phone)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
