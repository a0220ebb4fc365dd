package request

import "tutoring-scheduler/pkg/utils"

type PaginatedRequest struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=100"`
}

func (p PaginatedRequest) Offset() int {
	return utils.CalculateOffset(p.Page, p.Limit())
}

func (p PaginatedRequest) Limit() int {
	if p.PerPage < 1 {
		return 10
	}
	if p.PerPage > 100 {
		return 100
	}
	return p.PerPage
}

// Window returns the [start, end) bounds of this page within total items.
func (p PaginatedRequest) Window(total int) (int, int) {
	start := min(max(p.Offset(), 0), total)
	end := start + min(p.Limit(), total-start)
	return start, end
}
