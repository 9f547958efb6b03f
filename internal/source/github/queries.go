package github

import "time"

const commitHistoryQuery = `
query CommitHistory($owner: String!, $name: String!, $ref: String!, $since: GitTimestamp, $path: String, $first: Int!, $after: String) {
  repository(owner: $owner, name: $name) {
    ref(qualifiedName: $ref) {
      target {
        ... on Commit {
          history(since: $since, path: $path, first: $first, after: $after) {
            pageInfo { hasNextPage endCursor }
            edges {
              cursor
              node {
                oid
                message
                authoredDate
                committedDate
                author { name email }
              }
            }
          }
        }
      }
    }
  }
}`

const pullRequestsQuery = `
query PullRequests($owner: String!, $name: String!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $name) {
    pullRequests(first: $first, after: $after, orderBy: {field: UPDATED_AT, direction: DESC}) {
      pageInfo { hasNextPage endCursor }
      edges {
        cursor
        node {
          databaseId
          number
          title
          state
          isDraft
          createdAt
          updatedAt
          mergedAt
          closedAt
          baseRefName
          headRefName
          author { login }
          labels(first: 20) { nodes { name } }
        }
      }
    }
  }
}`

const issuesQuery = `
query Issues($owner: String!, $name: String!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $name) {
    issues(first: $first, after: $after, orderBy: {field: UPDATED_AT, direction: DESC}) {
      pageInfo { hasNextPage endCursor }
      edges {
        cursor
        node {
          databaseId
          number
          title
          state
          createdAt
          updatedAt
          closedAt
          author { login }
          labels(first: 20) { nodes { name } }
        }
      }
    }
  }
}`

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type gitActor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type commitNode struct {
	OID           string    `json:"oid"`
	Message       string    `json:"message"`
	AuthoredDate  time.Time `json:"authoredDate"`
	CommittedDate time.Time `json:"committedDate"`
	Author        *gitActor `json:"author"`
}

type commitHistoryData struct {
	Repository *struct {
		Ref *struct {
			Target *struct {
				History *struct {
					PageInfo pageInfo `json:"pageInfo"`
					Edges    []struct {
						Cursor string     `json:"cursor"`
						Node   commitNode `json:"node"`
					} `json:"edges"`
				} `json:"history"`
			} `json:"target"`
		} `json:"ref"`
	} `json:"repository"`
}

type actorLogin struct {
	Login string `json:"login"`
}

type labelNodes struct {
	Nodes []struct {
		Name string `json:"name"`
	} `json:"nodes"`
}

func (l labelNodes) names() []string {
	out := make([]string, len(l.Nodes))
	for i, n := range l.Nodes {
		out[i] = n.Name
	}
	return out
}

type pullRequestNode struct {
	DatabaseID  *int64      `json:"databaseId"`
	Number      int         `json:"number"`
	Title       string      `json:"title"`
	State       string      `json:"state"`
	IsDraft     bool        `json:"isDraft"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	MergedAt    *time.Time  `json:"mergedAt"`
	ClosedAt    *time.Time  `json:"closedAt"`
	BaseRefName string      `json:"baseRefName"`
	HeadRefName string      `json:"headRefName"`
	Author      *actorLogin `json:"author"`
	Labels      labelNodes  `json:"labels"`
}

type pullRequestsData struct {
	Repository *struct {
		PullRequests *struct {
			PageInfo pageInfo `json:"pageInfo"`
			Edges    []struct {
				Cursor string          `json:"cursor"`
				Node   pullRequestNode `json:"node"`
			} `json:"edges"`
		} `json:"pullRequests"`
	} `json:"repository"`
}

type issueNode struct {
	DatabaseID *int64      `json:"databaseId"`
	Number     int         `json:"number"`
	Title      string      `json:"title"`
	State      string      `json:"state"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	ClosedAt   *time.Time  `json:"closedAt"`
	Author     *actorLogin `json:"author"`
	Labels     labelNodes  `json:"labels"`
}

type issuesData struct {
	Repository *struct {
		Issues *struct {
			PageInfo pageInfo `json:"pageInfo"`
			Edges    []struct {
				Cursor string    `json:"cursor"`
				Node   issueNode `json:"node"`
			} `json:"edges"`
		} `json:"issues"`
	} `json:"repository"`
}
