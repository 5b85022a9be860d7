// Package main runs end-to-end scenarios against a deployed appointments API.
//
// Each scenario submits requests over HTTP and polls the status store until
// the country processors and the completion consumer have caught up.
//
// Usage:
//
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go happy-path-pe   # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"
)

const (
	maxWaitSecs  = 60
	pollInterval = 2 * time.Second
)

var apiBase string

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type appointmentView struct {
	AppointmentID string `json:"appointmentId"`
	InsuredID     string `json:"insuredId"`
	CountryISO    string `json:"countryISO"`
	Status        string `json:"status"`
	UpdatedAt     string `json:"updatedAt"`
}

func do(method, path string, payload interface{}) (int, envelope, error) {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, apiBase+path, body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return resp.StatusCode, envelope{}, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, env, nil
}

func randomInsuredID() string {
	return fmt.Sprintf("%05d", rand.Intn(100000))
}

func create(insuredID string, scheduleID int64, country string) (int, string, error) {
	status, env, err := do(http.MethodPost, "/appointments", map[string]interface{}{
		"insuredId":  insuredID,
		"scheduleId": scheduleID,
		"countryISO": country,
	})
	if err != nil || !env.Success {
		return status, "", err
	}
	var out struct {
		AppointmentID string `json:"appointmentId"`
	}
	_ = json.Unmarshal(env.Data, &out)
	return status, out.AppointmentID, nil
}

func getAppointment(id string) (appointmentView, error) {
	_, env, err := do(http.MethodGet, "/appointments/"+id, nil)
	if err != nil {
		return appointmentView{}, err
	}
	var view appointmentView
	err = json.Unmarshal(env.Data, &view)
	return view, err
}

func waitForStatus(id, target string, maxSecs int) (appointmentView, error) {
	deadline := time.Now().Add(time.Duration(maxSecs) * time.Second)
	var last appointmentView
	for time.Now().Before(deadline) {
		view, err := getAppointment(id)
		if err == nil {
			last = view
			if view.Status == target {
				return view, nil
			}
		}
		time.Sleep(pollInterval)
	}
	return last, fmt.Errorf("appointment %s still %q after %ds", id, last.Status, maxSecs)
}

func happyPath(country string) func(t *T) {
	return func(t *T) {
		insured := randomInsuredID()
		status, id, err := create(insured, 100, country)
		if err != nil {
			t.fatalf("create failed: %v", err)
			return
		}
		t.check("create returns 202", status == http.StatusAccepted)
		t.check("create returns an appointment id", id != "")
		if id == "" {
			return
		}

		view, err := getAppointment(id)
		t.check("appointment is readable right away", err == nil && view.AppointmentID == id)

		view, err = waitForStatus(id, "completed", maxWaitSecs)
		if err != nil {
			t.fatalf("%v", err)
			return
		}
		t.check("country matches request", view.CountryISO == country)
		t.check("updatedAt stamped on completion", view.UpdatedAt != "")
	}
}

func scenarioListByInsured(t *T) {
	insured := randomInsuredID()
	ids := map[string]bool{}
	for _, country := range []string{"PE", "CL"} {
		_, id, err := create(insured, 200, country)
		if err != nil || id == "" {
			t.fatalf("create %s failed: %v", country, err)
			return
		}
		ids[id] = true
	}

	status, env, err := do(http.MethodGet, "/insured/"+insured+"/appointments", nil)
	if err != nil {
		t.fatalf("list failed: %v", err)
		return
	}
	var out struct {
		Count        int               `json:"count"`
		Appointments []appointmentView `json:"appointments"`
	}
	_ = json.Unmarshal(env.Data, &out)
	t.check("list returns 200", status == http.StatusOK)
	t.check("list returns both appointments", out.Count == 2)
	for _, a := range out.Appointments {
		t.check("listed appointment belongs to this run", ids[a.AppointmentID])
	}
}

func scenarioValidation(t *T) {
	cases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"short insuredId", map[string]interface{}{"insuredId": "12", "scheduleId": 1, "countryISO": "PE"}},
		{"unsupported country", map[string]interface{}{"insuredId": "00012", "scheduleId": 1, "countryISO": "AR"}},
		{"missing scheduleId", map[string]interface{}{"insuredId": "00012", "countryISO": "CL"}},
	}
	for _, c := range cases {
		status, env, err := do(http.MethodPost, "/appointments", c.payload)
		if err != nil {
			t.fatalf("%s: %v", c.name, err)
			continue
		}
		t.check(c.name+" returns 400", status == http.StatusBadRequest)
		t.check(c.name+" reports an error code", env.Error != nil && env.Error.Code != "")
	}
}

func scenarioUnknownAppointment(t *T) {
	status, env, err := do(http.MethodGet, "/appointments/00000000-0000-4000-8000-000000000000", nil)
	if err != nil {
		t.fatalf("get failed: %v", err)
		return
	}
	t.check("unknown appointment returns 404", status == http.StatusNotFound)
	t.check("error code is APPOINTMENT_NOT_FOUND", env.Error != nil && env.Error.Code == "APPOINTMENT_NOT_FOUND")
}

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"happy-path-pe", happyPath("PE")},
		{"happy-path-cl", happyPath("CL")},
		{"list-by-insured", scenarioListByInsured},
		{"validation", scenarioValidation},
		{"unknown-appointment", scenarioUnknownAppointment},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	results := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "ok  "
		if t.failed > 0 {
			status = "FAIL"
		}
		results = append(results, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range results {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\nSOME SCENARIOS FAILED")
		os.Exit(1)
	}
	fmt.Println("\nALL SCENARIOS PASSED")
}
