package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/slots"
	"github.com/hackgods/vet-clinic-scheduling/internal/tenancy"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

// calendarHandler returns the business-hour intervals of one day and the
// availability left after rules, for the clinic or one staff member.
func calendarHandler(resolver *availability.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _ := tenancy.ClinicFromContext(r.Context())

		date, err := queryDate(r)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		staffID, err := queryUUID(r, "staff_id")
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		available, err := resolver.OpenIntervals(r.Context(), c, staffID, c.DayWindow(date))
		if err != nil {
			writeServiceError(w, nil, err)
			return
		}

		loc := c.Location()
		resp := CalendarResponse{
			Date:      date.Format(time.DateOnly),
			Timezone:  loc.String(),
			Open:      toIntervals(c.OpenIntervals(date), loc),
			Available: toIntervals(available, loc),
		}
		if h, ok := c.Holiday(date); ok {
			resp.Holiday = &h.Name
		}
		now := time.Now()
		resp.OpenNow = c.IsOpenAt(now)
		if next := c.NextOpenTime(now); !next.IsZero() {
			next = next.In(loc)
			resp.NextOpen = &next
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func slotsHandler(allocator *slots.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _ := tenancy.ClinicFromContext(r.Context())

		date, err := queryDate(r)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		serviceID, err := parseUUID("service_id", r.URL.Query().Get("service_id"))
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		staffID, err := queryUUID(r, "staff_id")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		resourceID, err := queryUUID(r, "resource_id")
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		q := slots.Query{
			ClinicID:   c.ID,
			ServiceID:  serviceID,
			Date:       date,
			StaffID:    staffID,
			ResourceID: resourceID,
		}
		seq, err := allocator.CandidateSlots(r.Context(), q)
		if err != nil {
			writeServiceError(w, nil, err)
			return
		}

		loc := c.Location()
		resp := SlotsResponse{
			Date:               date.Format(time.DateOnly),
			ServiceID:          serviceID,
			GranularityMinutes: int(allocator.Granularity() / time.Minute),
			Slots:              localTimes(slices.Collect(seq), loc),
		}
		if staffID == nil {
			groups, err := allocator.SlotsByStaff(r.Context(), q)
			if err != nil {
				writeServiceError(w, nil, err)
				return
			}
			for _, g := range groups {
				resp.ByStaff = append(resp.ByStaff, StaffSlotsResponse{
					StaffID:   g.Staff.ID,
					StaffName: g.Staff.Name,
					Slots:     localTimes(g.Slots, loc),
				})
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listRulesHandler(rules *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())

		list, err := rules.ListRules(r.Context(), clinicID, queryBool(r, "include_deleted"))
		if err != nil {
			writeServiceError(w, nil, err)
			return
		}
		out := make([]RuleResponse, 0, len(list))
		for i := range list {
			out = append(out, toRuleResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createRuleHandler(rules *availability.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())

		var req CreateRuleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		staffID, err := optionalUUID("staff_id", req.StaffID)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		start, err := parseTimestamp("start", req.Start)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		end, err := parseTimestamp("end", req.End)
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		rule, err := rules.CreateRule(r.Context(), clinicID, availability.CreateRuleInput{
			StaffID: staffID,
			Kind:    availability.Kind(req.Kind),
			Start:   start,
			End:     end,
			Notes:   req.Notes,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRuleResponse(rule))
	}
}

func deleteRuleHandler(rules *availability.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
		id, err := pathUUID(r, "ruleID")
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		rule, err := rules.DeleteRule(r.Context(), clinicID, id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}
