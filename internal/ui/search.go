package ui

import (
	"taskapp/internal/storage"
)

// NoMatchNotice is shown when a category search finds nothing.
const NoMatchNotice = "no tasks found for this category"

type TaskQuerier interface {
	QueryAll() ([]storage.Task, error)
	QueryByCategory(text string) ([]storage.Task, error)
}

type SearchOutcome int

const (
	// SearchReset: empty input reloaded the full list.
	SearchReset SearchOutcome = iota
	// SearchFiltered: the list now shows the matching category.
	SearchFiltered
	// SearchNoMatch: nothing matched; the list was left as it was.
	SearchNoMatch
)

type SearchResult struct {
	Outcome SearchOutcome
	Count   int
	Notice  string
}

// SearchController turns the search box's text into a list update.
type SearchController struct {
	querier TaskQuerier
	list    *TaskList
}

func NewSearchController(q TaskQuerier, list *TaskList) *SearchController {
	return &SearchController{querier: q, list: list}
}

// Search reloads everything for empty input and filters by exact category
// otherwise. A filter with no matches leaves the list untouched and returns
// NoMatchNotice instead. Query errors leave the list untouched too.
func (c *SearchController) Search(input string) (SearchResult, error) {
	if input == "" {
		tasks, err := c.querier.QueryAll()
		if err != nil {
			return SearchResult{}, err
		}
		c.list.UpdateTaskList(tasks)
		return SearchResult{Outcome: SearchReset, Count: len(tasks)}, nil
	}

	tasks, err := c.querier.QueryByCategory(input)
	if err != nil {
		return SearchResult{}, err
	}
	if len(tasks) == 0 {
		return SearchResult{Outcome: SearchNoMatch, Notice: NoMatchNotice}, nil
	}
	c.list.UpdateTaskList(tasks)
	return SearchResult{Outcome: SearchFiltered, Count: len(tasks)}, nil
}
