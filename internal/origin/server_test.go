package origin

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEndpoints(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/fast")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/fast status = %d", resp.StatusCode)
	}

	resp, err = srv.Client().Get(srv.URL + "/close")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !resp.Close {
		t.Error("/close did not ask the client to close the connection")
	}

	for i := 0; i < 20; i++ {
		resp, err := srv.Client().Get(srv.URL + "/error")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK, http.StatusTooManyRequests, http.StatusInternalServerError:
		default:
			t.Fatalf("/error status = %d", resp.StatusCode)
		}
	}
}
