package handlers

import (
	"time"

	"tasknote-backend/domain/core/entities"
)

// View models returned by the REST layer. Entity keys travel as the opaque
// partition+row composite; clients echo them back unmodified.

type UserView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}

type NoteView struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	IsClosed      bool       `json:"isClosed"`
	OrderingIndex int        `json:"orderingIndex"`
	SharedWith    []UserView `json:"sharedWith,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type TaskListView struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Owner      *UserView  `json:"owner,omitempty"`
	Notes      []NoteView `json:"notes,omitempty"`
	SharedWith []UserView `json:"sharedWith,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func toUserView(u *entities.User) UserView {
	return UserView{
		ID:       u.RowKey,
		Name:     u.Name,
		Email:    u.Email,
		Provider: string(u.Provider()),
	}
}

func toUserViews(users []*entities.User) []UserView {
	if len(users) == 0 {
		return nil
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	return views
}

func toNoteView(n *entities.Note) NoteView {
	return NoteView{
		ID:            n.CompositeKey(),
		Title:         n.Title,
		Content:       n.Content,
		IsClosed:      n.IsClosed,
		OrderingIndex: n.OrderingIndex,
		SharedWith:    toUserViews(n.Share),
		UpdatedAt:     n.Timestamp,
	}
}

func toTaskListView(t *entities.TaskList) TaskListView {
	view := TaskListView{
		ID:         t.CompositeKey(),
		Title:      t.Title,
		SharedWith: toUserViews(t.Share),
		UpdatedAt:  t.Timestamp,
	}
	if t.Owner != nil {
		owner := toUserView(t.Owner)
		view.Owner = &owner
	}
	for _, n := range t.Notes {
		view.Notes = append(view.Notes, toNoteView(n))
	}
	return view
}
