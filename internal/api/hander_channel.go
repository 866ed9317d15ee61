package api

import (
	"strconv"

	"github.com/fieldwave/comsrv/internal/models"
	"github.com/fieldwave/comsrv/internal/response"
	"github.com/fieldwave/comsrv/internal/util"
	"github.com/gofiber/fiber/v3"
)

// ListChannels returns every configured channel merged with its live
// status when the channel factory currently has it running, paginated
// via ?page=&page_size=.
func (s *Server) ListChannels(c fiber.Ctx) error {
	pq := util.ParsePageQuery(c)
	offset, limit := pq.OffsetLimit()

	var rows []models.Channel
	if err := s.DB.Order("name asc").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return response.Internal(c, "db error")
	}

	for i := range rows {
		entry, ok := s.Manager.GetChannel(uint16(rows[i].ID))
		if !ok {
			continue
		}
		status := entry.Protocol.Status()
		rows[i].Status.Working = status.IsConnected
		rows[i].Status.Linking = status.IsConnected
		rows[i].Status.BytesSent = status.BytesSent
		rows[i].Status.BytesReceived = status.BytesReceived
	}
	return response.OK(c, rows)
}

// ChannelStatus returns the live status of a single running channel.
func (s *Server) ChannelStatus(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 16)
	if err != nil {
		return response.BadRequest(c, "invalid channel id")
	}
	entry, ok := s.Manager.GetChannel(uint16(id))
	if !ok {
		return response.NotFound(c, "channel not running")
	}
	return response.OK(c, entry.Protocol.Status())
}

// ExecuteCalculation triggers a single registered calculation by id and
// returns its result, including failures (status Error is still a 200 —
// the result itself carries the diagnostic).
func (s *Server) ExecuteCalculation(c fiber.Ctx) error {
	id := c.Params("id")
	result, err := s.Calc.ExecuteCalculation(c.Context(), id)
	if err != nil {
		return response.NotFound(c, err.Error())
	}
	return response.OK(c, result)
}
