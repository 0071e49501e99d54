package nginx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScrapeStubStatusParsesAndAdjusts(t *testing.T) {
	body := "Active connections: 3 \n" +
		"server accepts handled requests\n" +
		" 10 10 25 \n" +
		"Reading: 0 Writing: 2 Waiting: 1 \n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	st, err := ScrapeStubStatus(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if st.Active != 2 {
		t.Errorf("expected active adjusted to 2 (3-1), got %d", st.Active)
	}
	if st.Writing != 1 {
		t.Errorf("expected writing adjusted to 1 (2-1), got %d", st.Writing)
	}
	if st.Accepts != 10 || st.Handled != 10 || st.Requests != 25 {
		t.Errorf("unexpected counter triple: %+v", st)
	}
	if st.Reading != 0 || st.Waiting != 1 {
		t.Errorf("unexpected reading/waiting: %+v", st)
	}
}

func TestScrapeStubStatusMalformedBodyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not stub status at all"))
	}))
	defer srv.Close()

	if _, err := ScrapeStubStatus(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
