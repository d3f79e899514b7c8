// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queryapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/z-vasconcelos/flightsurety/types"
)

const apiName = "flightsurety"

func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch types.Kind(err) {
	case "NotFound":
		return http.StatusNotFound
	case "NotAuthorized":
		return http.StatusForbidden
	case "Internal":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (q *QueryAPI) writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		q.logger.Error("query failed", "error", err)
		writeError(w, status, "Internal Server Error", "query failed")
		return
	}
	writeError(w, status, types.Kind(err), err.Error())
}

func addressParam(r *http.Request) (types.Address, error) {
	return types.ParseAddress(chi.URLParam(r, "address"))
}

func (q *QueryAPI) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    apiName,
		Version: q.config.Version,
	})
}

func (q *QueryAPI) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

func (q *QueryAPI) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Operational: q.node.IsOperational(),
		Balance:     q.node.ContractBalance().String(),
		Airlines:    len(q.node.GetAirlines()),
		Flights:     len(q.node.GetAllFlights()),
		Oracles:     len(q.node.GetOracles()),
	})
}

func (q *QueryAPI) handleAirlines(w http.ResponseWriter, _ *http.Request) {
	airlines := q.node.GetAirlines()
	ret := make([]AirlineResponse, 0, len(airlines))
	for _, a := range airlines {
		votes, err := q.node.GetVoteCount(a.Address)
		if err != nil {
			q.writeDomainError(w, err)
			return
		}
		ret = append(ret, airlineResponse(a, votes))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (q *QueryAPI) handleAirline(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	a, err := q.node.GetAirline(addr)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	votes, err := q.node.GetVoteCount(addr)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, airlineResponse(a, votes))
}

func (q *QueryAPI) handleAirlineFlights(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	if _, err := q.node.GetAirline(addr); err != nil {
		q.writeDomainError(w, err)
		return
	}
	flights := q.node.GetFlights(addr)
	ret := make([]FlightResponse, 0, len(flights))
	for _, f := range flights {
		ret = append(ret, flightResponse(f))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (q *QueryAPI) handleFlight(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	timestamp, err := strconv.ParseInt(chi.URLParam(r, "timestamp"), 10, 64)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			fmt.Sprintf("invalid timestamp: %s", chi.URLParam(r, "timestamp")),
		)
		return
	}
	f, err := q.node.GetFlight(types.FlightKey{
		Airline:   addr,
		Code:      chi.URLParam(r, "code"),
		Timestamp: timestamp,
	})
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flightResponse(f))
}

func (q *QueryAPI) handleOracleIndexes(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	indexes, err := q.node.GetMyIndexes(addr)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	ret := IndexesResponse{
		Address: string(addr),
		Indexes: make([]int, 0, len(indexes)),
	}
	for _, idx := range indexes {
		ret.Indexes = append(ret.Indexes, int(idx))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (q *QueryAPI) handleInsureeCredits(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreditsResponse{
		Address: string(addr),
		Credits: q.node.GetInsureeCredits(addr).String(),
	})
}

func (q *QueryAPI) handleInsureePolicies(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		q.writeDomainError(w, err)
		return
	}
	policies := q.node.GetPolicies(addr)
	ret := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		ret = append(ret, policyResponse(p))
	}
	writeJSON(w, http.StatusOK, ret)
}
