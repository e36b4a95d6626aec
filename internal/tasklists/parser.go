// Package tasklists mirrors the checkbox task list of a pull request
// description as GitHub commit statuses.
package tasklists

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// Task is a single checkbox item
type Task struct {
	Name      string `json:"name" yaml:"name"`
	Completed bool   `json:"completed" yaml:"completed"`
}

var checkbox = regexp.MustCompile(`^\[([ xX])\][ \t]+(\S.*)$`)

// Parse returns every task list item of a markdown document in document order.
// Nested items are included; items without a leading checkbox are not.
func Parse(markdown string) []Task {
	input := bytes.ReplaceAll([]byte(markdown), []byte("\r\n"), []byte("\n"))
	root := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions)).Parse(input)

	tasks := []Task{}
	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering || node.Type != blackfriday.Item {
			return blackfriday.GoToNext
		}
		if task, ok := itemTask(node); ok {
			tasks = append(tasks, task)
		}
		return blackfriday.GoToNext
	})
	return tasks
}

func itemTask(item *blackfriday.Node) (Task, bool) {
	first := item.FirstChild
	if first == nil {
		return Task{}, false
	}

	m := checkbox.FindStringSubmatch(strings.TrimSpace(firstLine(first)))
	if m == nil {
		return Task{}, false
	}
	return Task{
		Name:      strings.TrimSpace(m[2]),
		Completed: m[1] != " ",
	}, true
}

// firstLine renders the inline text of a block up to the first line break
func firstLine(block *blackfriday.Node) string {
	var sb strings.Builder
	block.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering {
			return blackfriday.GoToNext
		}
		switch node.Type {
		case blackfriday.Softbreak, blackfriday.Hardbreak, blackfriday.List:
			return blackfriday.Terminate
		case blackfriday.Text, blackfriday.Code:
			sb.Write(node.Literal)
		}
		return blackfriday.GoToNext
	})
	return sb.String()
}
