package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/tenancy"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

func bookRequestFrom(clinicID uuid.UUID, req CreateAppointmentRequest) (appointment.BookRequest, error) {
	serviceID, err := parseUUID("service_id", req.ServiceID)
	if err != nil {
		return appointment.BookRequest{}, err
	}
	staffID, err := optionalUUID("staff_id", req.StaffID)
	if err != nil {
		return appointment.BookRequest{}, err
	}
	resourceID, err := optionalUUID("resource_id", req.ResourceID)
	if err != nil {
		return appointment.BookRequest{}, err
	}
	petID, err := optionalUUID("pet_id", req.PetID)
	if err != nil {
		return appointment.BookRequest{}, err
	}
	start, err := parseTimestamp("start", req.Start)
	if err != nil {
		return appointment.BookRequest{}, err
	}
	return appointment.BookRequest{
		ClinicID:   clinicID,
		ServiceID:  serviceID,
		StaffID:    staffID,
		ResourceID: resourceID,
		PetID:      petID,
		Start:      start,
		Status:     appointment.Status(req.Status),
		Notes:      req.Notes,
		Hold:       req.Hold,
	}, nil
}

func rescheduleRequestFrom(req RescheduleRequest) (appointment.RescheduleRequest, error) {
	start, err := parseTimestamp("start", req.Start)
	if err != nil {
		return appointment.RescheduleRequest{}, err
	}
	staffID, err := optionalUUID("staff_id", req.StaffID)
	if err != nil {
		return appointment.RescheduleRequest{}, err
	}
	resourceID, err := optionalUUID("resource_id", req.ResourceID)
	if err != nil {
		return appointment.RescheduleRequest{}, err
	}
	return appointment.RescheduleRequest{
		Start:         start,
		StaffID:       staffID,
		ResourceID:    resourceID,
		ClearResource: req.ClearResource,
	}, nil
}

func createAppointmentHandler(svc *appointment.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())

		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		book, err := bookRequestFrom(clinicID, req)
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		appt, err := svc.Book(r.Context(), book)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// checkAppointmentHandler dry-runs a booking, or a move when appointment_id
// is set. Moves ignore service_id and keep the stored duration, staff and
// resource unless new ones are given, as the schedule endpoint does.
func checkAppointmentHandler(svc *appointment.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())

		var req CheckAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		self, err := optionalUUID("appointment_id", req.AppointmentID)
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		var conflicts []appointment.Conflict
		if self != nil {
			move, err := rescheduleRequestFrom(RescheduleRequest{
				Start:         req.Start,
				StaffID:       req.StaffID,
				ResourceID:    req.ResourceID,
				ClearResource: req.ClearResource,
			})
			if err != nil {
				writeBadRequest(w, err)
				return
			}
			conflicts, err = svc.CheckMove(r.Context(), clinicID, *self, move)
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
		} else {
			book, err := bookRequestFrom(clinicID, req.CreateAppointmentRequest)
			if err != nil {
				writeBadRequest(w, err)
				return
			}
			conflicts, err = svc.Check(r.Context(), book)
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
		}

		writeJSON(w, http.StatusOK, CheckResponse{
			OK:        len(conflicts) == 0,
			Conflicts: toConflictResponses(conflicts),
		})
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())

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
		resourceID, err := queryUUID(r, "resource_id")
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		appts, err := svc.ListForDay(r.Context(), clinicID, date, staffID, resourceID, queryBool(r, "include_canceled"))
		if err != nil {
			writeServiceError(w, nil, err)
			return
		}
		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
		id, err := pathUUID(r, "id")
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		appt, err := svc.Get(r.Context(), clinicID, id)
		if err != nil {
			writeServiceError(w, nil, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
		id, err := pathUUID(r, "id")
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		var req RescheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		move, err := rescheduleRequestFrom(req)
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		appt, err := svc.Reschedule(r.Context(), clinicID, id, move)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionAppointmentHandler(svc *appointment.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
		id, err := pathUUID(r, "id")
		if err != nil {
			writeBadRequest(w, err)
			return
		}

		var req StatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}

		appt, err := svc.Transition(r.Context(), clinicID, id, appointment.Status(req.Status))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}
