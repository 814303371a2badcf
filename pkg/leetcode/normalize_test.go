package leetcode

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

// encodedCalendar wraps a calendar document the way upstream sends it: as a
// JSON string.
func encodedCalendar(doc string) json.RawMessage {
	raw, _ := json.Marshal(doc)
	return raw
}

func TestNormalize(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	convey.Convey("Given an upstream profile node", t, func() {
		user := &matchedUser{
			Username: "alice",
			Profile: &userProfile{
				RealName:   strPtr("Alice A"),
				UserAvatar: strPtr("https://assets.example/alice.png"),
				Ranking:    intPtr(1234),
			},
		}

		convey.Convey("When tier entries have no submission counts", func() {
			user.SubmitStatsGlobal = &submitStats{AcSubmissionNum: []submissionRecord{
				{Difficulty: "Easy", Count: 5},
				{Difficulty: "Medium", Count: 3},
				{Difficulty: "Hard", Count: 0},
			}}

			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then totals are summed and acceptance is absent", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.TotalSolved, convey.ShouldEqual, 8)
				convey.So(snap.Easy, convey.ShouldEqual, 5)
				convey.So(snap.Medium, convey.ShouldEqual, 3)
				convey.So(snap.Hard, convey.ShouldEqual, 0)
				convey.So(snap.TotalAttempted, convey.ShouldBeNil)
				convey.So(snap.AcceptanceRate, convey.ShouldBeNil)
				convey.So(snap.Submissions, convey.ShouldHaveLength, 3)
				convey.So(snap.RealName, convey.ShouldEqual, "Alice A")
				convey.So(snap.Ranking, convey.ShouldEqual, 1234)
				convey.So(snap.FetchedAt.Location(), convey.ShouldEqual, time.UTC)
			})
		})

		convey.Convey("When tier entries carry submission counts", func() {
			user.SubmitStatsGlobal = &submitStats{AcSubmissionNum: []submissionRecord{
				{Difficulty: "Easy", Count: 3, Submissions: intPtr(10)},
				{Difficulty: "Medium", Count: 2, Submissions: intPtr(10)},
			}}

			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then the acceptance rate is solved over attempted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(*snap.TotalAttempted, convey.ShouldEqual, 20)
				convey.So(*snap.AcceptanceRate, convey.ShouldEqual, 25.0)
				convey.So(snap.Hard, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the ratio has a long fraction", func() {
			user.SubmitStatsGlobal = &submitStats{AcSubmissionNum: []submissionRecord{
				{Difficulty: "Easy", Count: 1, Submissions: intPtr(3)},
			}}

			snap, _ := normalize(user, fetchedAt)

			convey.Convey("Then it is rounded to two decimals", func() {
				convey.So(*snap.AcceptanceRate, convey.ShouldEqual, 33.33)
			})
		})

		convey.Convey("When submissions are reported as zero", func() {
			user.SubmitStatsGlobal = &submitStats{AcSubmissionNum: []submissionRecord{
				{Difficulty: "Easy", Count: 0, Submissions: intPtr(0)},
			}}

			snap, _ := normalize(user, fetchedAt)

			convey.Convey("Then attempted is zero and acceptance stays absent", func() {
				convey.So(*snap.TotalAttempted, convey.ShouldEqual, 0)
				convey.So(snap.AcceptanceRate, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the stats node is missing entirely", func() {
			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then counts are zero and the calendar is empty", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.TotalSolved, convey.ShouldEqual, 0)
				convey.So(snap.Submissions, convey.ShouldBeEmpty)
				convey.So(snap.Calendar, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the calendar holds epoch-second keys", func() {
			user.UserCalendar = &userCalendar{
				SubmissionCalendar: encodedCalendar(`{"1700000000": 2, "1700000100": 3, "1700086400": 1}`),
			}

			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then keys become UTC dates and same-day counts are summed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Calendar, convey.ShouldResemble, map[string]int{
					"2023-11-14": 5,
					"2023-11-15": 1,
				})
			})
		})

		convey.Convey("When the calendar is not valid JSON", func() {
			user.UserCalendar = &userCalendar{SubmissionCalendar: encodedCalendar(`{not json`)}
			user.SubmitStatsGlobal = &submitStats{AcSubmissionNum: []submissionRecord{
				{Difficulty: "Easy", Count: 4},
			}}

			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then the calendar is empty and the rest is kept", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(snap.Calendar, convey.ShouldBeEmpty)
				convey.So(snap.TotalSolved, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When a calendar key is not a number", func() {
			user.UserCalendar = &userCalendar{SubmissionCalendar: encodedCalendar(`{"yesterday": 1}`)}

			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then the whole calendar is dropped", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(snap.Calendar, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the calendar arrives as an object instead of a string", func() {
			user.UserCalendar = &userCalendar{SubmissionCalendar: json.RawMessage(`{"1700000000": 4}`)}
			user.SubmitStatsGlobal = &submitStats{AcSubmissionNum: []submissionRecord{
				{Difficulty: "Hard", Count: 2},
			}}

			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then only the calendar is dropped", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(snap.Calendar, convey.ShouldBeEmpty)
				convey.So(snap.Hard, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the calendar is null", func() {
			user.UserCalendar = &userCalendar{SubmissionCalendar: json.RawMessage(`null`)}

			snap, err := normalize(user, fetchedAt)

			convey.Convey("Then the calendar is empty without an error", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Calendar, convey.ShouldBeEmpty)
			})
		})
	})
}
