package worldbank_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/giniscope/internal/adapters/worldbank"
	. "github.com/smartystreets/goconvey/convey"
)

// newClient builds a client pointed at a test server with a fast
// retry schedule.
func newClient(baseURL string, opts ...worldbank.Option) *worldbank.Client {
	base := []worldbank.Option{
		worldbank.WithBaseURL(baseURL),
		worldbank.WithMaxRetries(2),
		worldbank.WithBackoff(time.Millisecond, 10*time.Millisecond),
		worldbank.WithPerPage(50),
	}
	return worldbank.New(append(base, opts...)...)
}

func countryRecord(code, name string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"capitalCity":"Capital","longitude":"10.0","latitude":"20.0","region":{"value":"Test Region"}}`, code, name)
}

func TestClientCountries(t *testing.T) {
	Convey("Given an upstream serving a paginated country list", t, func() {
		var requests atomic.Int32
		var pagesSeen []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			page := r.URL.Query().Get("page")
			if page == "" {
				page = "1"
			}
			pagesSeen = append(pagesSeen, page)
			records := map[string]string{
				"1": countryRecord("USA", "United States"),
				"2": countryRecord("BRA", "Brazil"),
				"3": countryRecord("DEU", "Germany"),
			}
			fmt.Fprintf(w, `[{"page":%s,"pages":3,"per_page":1,"total":3},[%s]]`, page, records[page])
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching countries", func() {
			countries, skipped, partial, err := client.Countries(context.Background())

			Convey("Then all pages should aggregate in order with one request each", func() {
				So(err, ShouldBeNil)
				So(partial, ShouldBeFalse)
				So(skipped, ShouldEqual, 0)
				So(requests.Load(), ShouldEqual, 3)
				So(pagesSeen, ShouldResemble, []string{"1", "2", "3"})
				So(len(countries), ShouldEqual, 3)
				So(countries[0].Code, ShouldEqual, "USA")
				So(countries[2].Code, ShouldEqual, "DEU")
			})
		})
	})

	Convey("Given an upstream mixing countries, aggregates and junk", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `[{"page":1,"pages":1,"per_page":50,"total":4},[%s,%s,%s,%s]]`,
				countryRecord("usa", "United States"),
				`{"id":"WLD","name":"World","capitalCity":"","longitude":"","latitude":"","region":{"value":"Aggregates"}}`,
				`{"id":"B","name":"Broken","capitalCity":"X","longitude":"1","latitude":"2","region":{"value":""}}`,
				countryRecord("BRA", ""),
			)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching countries", func() {
			countries, skipped, _, err := client.Countries(context.Background())

			Convey("Then aggregates filter silently and invalid records count as skipped", func() {
				So(err, ShouldBeNil)
				So(len(countries), ShouldEqual, 1)
				So(countries[0].Code, ShouldEqual, "USA")
				So(skipped, ShouldEqual, 2)
			})
		})
	})

	Convey("Given an upstream reporting zero records", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"page":1,"pages":0,"per_page":50,"total":0},null]`)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching countries", func() {
			countries, _, partial, err := client.Countries(context.Background())

			Convey("Then the result should be empty, not an error", func() {
				So(err, ShouldBeNil)
				So(partial, ShouldBeFalse)
				So(countries, ShouldBeEmpty)
			})
		})
	})
}

func TestClientSeries(t *testing.T) {
	Convey("Given an upstream serving indicator observations", t, func() {
		var gotPath string
		var gotDate string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotDate = r.URL.Query().Get("date")
			fmt.Fprint(w, `[{"page":1,"pages":1,"per_page":50,"total":5},[
				{"date":"2018","value":41.1},
				{"date":"2019","value":null},
				{"date":"2020","value":"39.8"},
				{"date":"2021","value":"not-a-number"},
				{"date":"1850","value":30.0}
			]]`)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching a series", func() {
			series, err := client.Series(context.Background(), "USA", 2018, 2021)

			Convey("Then the request should target the indicator endpoint with a date filter", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/country/USA/indicator/SI.POV.GINI")
				So(gotDate, ShouldEqual, "2018:2021")
			})

			Convey("Then nulls are preserved and malformed records skipped", func() {
				So(err, ShouldBeNil)
				So(series.Len(), ShouldEqual, 3)
				So(series.Skipped, ShouldEqual, 2)
				So(series.Partial, ShouldBeFalse)

				points := series.Chronological()
				So(points[0].Year, ShouldEqual, 2018)
				So(*points[0].Value, ShouldEqual, 41.1)
				So(points[1].Year, ShouldEqual, 2019)
				So(points[1].HasValue(), ShouldBeFalse)
				So(points[2].Year, ShouldEqual, 2020)
				So(*points[2].Value, ShouldEqual, 39.8)
			})
		})
	})

	Convey("Given an upstream repeating a year across pages", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "2" {
				fmt.Fprint(w, `[{"page":2,"pages":2,"per_page":1,"total":2},[{"date":"2020","value":40.5}]]`)
				return
			}
			fmt.Fprint(w, `[{"page":1,"pages":2,"per_page":1,"total":2},[{"date":"2020","value":39.8}]]`)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching the series", func() {
			series, err := client.Series(context.Background(), "USA", 2019, 2021)

			Convey("Then the later page should win the duplicate year", func() {
				So(err, ShouldBeNil)
				So(series.Len(), ShouldEqual, 1)
				So(*series.Points[0].Value, ShouldEqual, 40.5)
			})
		})
	})
}

func TestClientRetry(t *testing.T) {
	Convey("Given an upstream that always returns 404", t, func() {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching", func() {
			_, _, _, err := client.Countries(context.Background())

			Convey("Then the failure should surface without retries", func() {
				So(err, ShouldNotBeNil)
				So(worldbank.IsStatus(err, http.StatusNotFound), ShouldBeTrue)
				So(requests.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an upstream that always returns 503", t, func() {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching with two retries configured", func() {
			_, _, _, err := client.Countries(context.Background())

			Convey("Then every attempt should be used before surfacing the error", func() {
				So(err, ShouldNotBeNil)
				So(worldbank.IsStatus(err, http.StatusServiceUnavailable), ShouldBeTrue)
				So(requests.Load(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given an upstream that rate-limits once then recovers", t, func() {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprintf(w, `[{"page":1,"pages":1,"per_page":50,"total":1},[%s]]`, countryRecord("USA", "United States"))
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching", func() {
			begin := time.Now()
			countries, _, _, err := client.Countries(context.Background())

			Convey("Then the retry should wait out the Retry-After hint and succeed", func() {
				So(err, ShouldBeNil)
				So(len(countries), ShouldEqual, 1)
				So(requests.Load(), ShouldEqual, 2)
				So(time.Since(begin), ShouldBeGreaterThanOrEqualTo, time.Second)
			})
		})
	})

	Convey("Given an upstream failing on a later page", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "2" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprintf(w, `[{"page":1,"pages":2,"per_page":1,"total":2},[%s]]`, countryRecord("USA", "United States"))
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching", func() {
			countries, _, partial, err := client.Countries(context.Background())

			Convey("Then accumulated records should return with the partial flag", func() {
				So(err, ShouldBeNil)
				So(partial, ShouldBeTrue)
				So(len(countries), ShouldEqual, 1)
			})
		})
	})
}

func TestClientDecodeFailures(t *testing.T) {
	Convey("Given an upstream returning malformed metadata", t, func() {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			fmt.Fprint(w, `{"this":"is not an envelope"}`)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching", func() {
			_, _, _, err := client.Countries(context.Background())

			Convey("Then decode failures should not be retried", func() {
				So(err, ShouldWrap, worldbank.ErrDecode)
				So(requests.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an upstream reporting an error inside a 200 response", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching a series", func() {
			_, err := client.Series(context.Background(), "XXX", 2000, 2020)

			Convey("Then the upstream message should surface as a decode failure", func() {
				So(err, ShouldWrap, worldbank.ErrDecode)
				So(err.Error(), ShouldContainSubstring, "not valid")
			})
		})
	})

	Convey("Given metadata claiming records but zero pages", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"page":1,"pages":0,"per_page":50,"total":10},[]]`)
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching", func() {
			_, _, _, err := client.Countries(context.Background())

			Convey("Then the inconsistency should be a decode failure", func() {
				So(err, ShouldWrap, worldbank.ErrDecode)
			})
		})
	})

	Convey("Given metadata with string pagination counters", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `[{"page":"1","pages":"1","per_page":"50","total":"1"},[%s]]`, countryRecord("USA", "United States"))
		}))
		defer srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching", func() {
			countries, _, _, err := client.Countries(context.Background())

			Convey("Then quoted counters should decode fine", func() {
				So(err, ShouldBeNil)
				So(len(countries), ShouldEqual, 1)
			})
		})
	})
}

func TestClientTransportFailures(t *testing.T) {
	Convey("Given an unreachable upstream", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		client := newClient(srv.URL)

		Convey("When fetching", func() {
			_, _, _, err := client.Countries(context.Background())

			Convey("Then the failure should classify as a network error", func() {
				So(err, ShouldWrap, worldbank.ErrNetwork)
			})
		})
	})

	Convey("Given a canceled context", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"page":1,"pages":1,"per_page":50,"total":0},null]`)
		}))
		defer srv.Close()

		client := newClient(srv.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When fetching", func() {
			_, _, _, err := client.Countries(ctx)

			Convey("Then the cancellation should surface as an error", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
