package leetcode

import "encoding/json"

const profileQuery = `query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile {
      realName
      userAvatar
      ranking
    }
    submitStatsGlobal {
      acSubmissionNum {
        difficulty
        count
        submissions
      }
    }
    userCalendar {
      submissionCalendar
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// graphQLResponse mirrors the upstream envelope. Every node is optional so a
// missing field decodes to nil instead of failing the whole document.
type graphQLResponse struct {
	Data *struct {
		MatchedUser *matchedUser `json:"matchedUser"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type matchedUser struct {
	Username          string        `json:"username"`
	Profile           *userProfile  `json:"profile"`
	SubmitStatsGlobal *submitStats  `json:"submitStatsGlobal"`
	UserCalendar      *userCalendar `json:"userCalendar"`
}

type userProfile struct {
	RealName   *string `json:"realName"`
	UserAvatar *string `json:"userAvatar"`
	Ranking    *int    `json:"ranking"`
}

type submitStats struct {
	AcSubmissionNum []submissionRecord `json:"acSubmissionNum"`
}

type submissionRecord struct {
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count"`
	Submissions *int   `json:"submissions"`
}

type userCalendar struct {
	// SubmissionCalendar should be a JSON string that itself holds a JSON
	// document of epoch seconds -> count. It is kept raw so that any other
	// shape fails only the calendar, not the envelope.
	SubmissionCalendar json.RawMessage `json:"submissionCalendar"`
}
