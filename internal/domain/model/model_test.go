package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/giniscope/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestPoint(t *testing.T) {
	convey.Convey("Given a Point", t, func() {
		convey.Convey("When it carries a value", func() {
			p := model.Point{Year: 2020, Value: model.Float64(39.8)}

			convey.Convey("Then HasValue should be true", func() {
				convey.So(p.HasValue(), convey.ShouldBeTrue)
				convey.So(*p.Value, convey.ShouldEqual, 39.8)
			})

			convey.Convey("Then it should encode the value as a number", func() {
				data, err := json.Marshal(p)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual, `{"year":2020,"value":39.8}`)
			})
		})

		convey.Convey("When it carries no value", func() {
			p := model.Point{Year: 2019}

			convey.Convey("Then HasValue should be false", func() {
				convey.So(p.HasValue(), convey.ShouldBeFalse)
			})

			convey.Convey("Then it should encode the value as null", func() {
				data, err := json.Marshal(p)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual, `{"year":2019,"value":null}`)
			})
		})
	})
}

func TestSeriesAdd(t *testing.T) {
	convey.Convey("Given an empty series", t, func() {
		s := model.NewSeries("USA")

		convey.Convey("When adding points for distinct years", func() {
			s.Add(model.Point{Year: 2020, Value: model.Float64(39.8)})
			s.Add(model.Point{Year: 2018, Value: model.Float64(41.1)})

			convey.Convey("Then both points should be kept in insertion order", func() {
				convey.So(s.Len(), convey.ShouldEqual, 2)
				convey.So(s.Points[0].Year, convey.ShouldEqual, 2020)
				convey.So(s.Points[1].Year, convey.ShouldEqual, 2018)
			})
		})

		convey.Convey("When adding a duplicate year", func() {
			s.Add(model.Point{Year: 2020, Value: model.Float64(39.8)})
			s.Add(model.Point{Year: 2018, Value: model.Float64(41.1)})
			s.Add(model.Point{Year: 2020, Value: model.Float64(40.2)})

			convey.Convey("Then the last write should win in place", func() {
				convey.So(s.Len(), convey.ShouldEqual, 2)
				convey.So(s.Points[0].Year, convey.ShouldEqual, 2020)
				convey.So(*s.Points[0].Value, convey.ShouldEqual, 40.2)
			})
		})

		convey.Convey("When adding a point without a value", func() {
			s.Add(model.Point{Year: 2019})

			convey.Convey("Then the null observation should be preserved", func() {
				convey.So(s.Len(), convey.ShouldEqual, 1)
				convey.So(s.Points[0].HasValue(), convey.ShouldBeFalse)
			})
		})
	})
}

func TestSeriesChronological(t *testing.T) {
	convey.Convey("Given a series with out-of-order points", t, func() {
		s := model.NewSeries("BRA")
		s.Add(model.Point{Year: 2021, Value: model.Float64(52.0)})
		s.Add(model.Point{Year: 2015, Value: model.Float64(51.3)})
		s.Add(model.Point{Year: 2019, Value: model.Float64(53.5)})

		convey.Convey("When requesting the chronological view", func() {
			points := s.Chronological()

			convey.Convey("Then it should be sorted ascending by year", func() {
				convey.So(len(points), convey.ShouldEqual, 3)
				convey.So(points[0].Year, convey.ShouldEqual, 2015)
				convey.So(points[1].Year, convey.ShouldEqual, 2019)
				convey.So(points[2].Year, convey.ShouldEqual, 2021)
			})

			convey.Convey("Then the stored order should be untouched", func() {
				convey.So(s.Points[0].Year, convey.ShouldEqual, 2021)
				convey.So(s.Points[1].Year, convey.ShouldEqual, 2015)
			})
		})
	})
}

func TestSeriesLatest(t *testing.T) {
	convey.Convey("Given a series with a trailing null observation", t, func() {
		s := model.NewSeries("DEU")
		s.Add(model.Point{Year: 2016, Value: model.Float64(31.9)})
		s.Add(model.Point{Year: 2018, Value: model.Float64(31.7)})
		s.Add(model.Point{Year: 2020})

		convey.Convey("When requesting the latest value", func() {
			p, ok := s.Latest()

			convey.Convey("Then it should skip the null and return 2018", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(p.Year, convey.ShouldEqual, 2018)
				convey.So(*p.Value, convey.ShouldEqual, 31.7)
			})
		})
	})

	convey.Convey("Given a series with only null observations", t, func() {
		s := model.NewSeries("DEU")
		s.Add(model.Point{Year: 2020})

		convey.Convey("When requesting the latest value", func() {
			_, ok := s.Latest()

			convey.Convey("Then nothing should be found", func() {
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

func TestSeriesSummarize(t *testing.T) {
	convey.Convey("Given an empty series", t, func() {
		s := model.NewSeries("USA")

		convey.Convey("When summarizing", func() {
			sum := s.Summarize()

			convey.Convey("Then the trend should be insufficient_data", func() {
				convey.So(sum.Count, convey.ShouldEqual, 0)
				convey.So(sum.Trend, convey.ShouldEqual, model.TrendInsufficient)
			})
		})
	})

	convey.Convey("Given a single observation", t, func() {
		s := model.NewSeries("USA")
		s.Add(model.Point{Year: 2020, Value: model.Float64(39.8)})

		convey.Convey("When summarizing", func() {
			sum := s.Summarize()

			convey.Convey("Then stats should be present but no trend", func() {
				convey.So(sum.Count, convey.ShouldEqual, 1)
				convey.So(sum.FirstYear, convey.ShouldEqual, 2020)
				convey.So(sum.LastYear, convey.ShouldEqual, 2020)
				convey.So(sum.Latest, convey.ShouldEqual, 39.8)
				convey.So(sum.Trend, convey.ShouldEqual, model.TrendInsufficient)
			})
		})
	})

	convey.Convey("Given a steadily rising series", t, func() {
		s := model.NewSeries("USA")
		s.Add(model.Point{Year: 2016, Value: model.Float64(40.0)})
		s.Add(model.Point{Year: 2017, Value: model.Float64(41.0)})
		s.Add(model.Point{Year: 2018, Value: model.Float64(42.0)})

		convey.Convey("When summarizing", func() {
			sum := s.Summarize()

			convey.Convey("Then the trend should be increasing", func() {
				convey.So(sum.Count, convey.ShouldEqual, 3)
				convey.So(sum.MinValue, convey.ShouldEqual, 40.0)
				convey.So(sum.MaxValue, convey.ShouldEqual, 42.0)
				convey.So(sum.MeanValue, convey.ShouldEqual, 41.0)
				convey.So(sum.Trend, convey.ShouldEqual, model.TrendIncreasing)
			})
		})
	})

	convey.Convey("Given a flat series within the dead band", t, func() {
		s := model.NewSeries("FRA")
		s.Add(model.Point{Year: 2016, Value: model.Float64(32.0)})
		s.Add(model.Point{Year: 2017, Value: model.Float64(32.05)})
		s.Add(model.Point{Year: 2018, Value: model.Float64(32.1)})

		convey.Convey("When summarizing", func() {
			sum := s.Summarize()

			convey.Convey("Then the trend should be stable", func() {
				convey.So(sum.Trend, convey.ShouldEqual, model.TrendStable)
			})
		})
	})

	convey.Convey("Given a declining series with interleaved nulls", t, func() {
		s := model.NewSeries("BRA")
		s.Add(model.Point{Year: 2015, Value: model.Float64(53.0)})
		s.Add(model.Point{Year: 2016})
		s.Add(model.Point{Year: 2017, Value: model.Float64(52.0)})
		s.Add(model.Point{Year: 2018, Value: model.Float64(51.0)})

		convey.Convey("When summarizing", func() {
			sum := s.Summarize()

			convey.Convey("Then nulls should not count as observations", func() {
				convey.So(sum.Count, convey.ShouldEqual, 3)
				convey.So(sum.Trend, convey.ShouldEqual, model.TrendDecreasing)
			})
		})
	})
}

func TestSeriesValueForYear(t *testing.T) {
	convey.Convey("Given a series with mixed observations", t, func() {
		s := model.NewSeries("USA")
		s.Add(model.Point{Year: 2018, Value: model.Float64(41.1)})
		s.Add(model.Point{Year: 2019})

		convey.Convey("Then an observed year should resolve", func() {
			v, ok := s.ValueForYear(2018)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 41.1)
		})

		convey.Convey("Then a null year should not resolve", func() {
			_, ok := s.ValueForYear(2019)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then an absent year should not resolve", func() {
			_, ok := s.ValueForYear(2020)
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}
