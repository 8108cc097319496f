package ui

import (
	"net/http"
	"strings"

	"gitea.jw6.us/james/dashboard/internal/api"
)

type loginForm struct {
	Email    string `form:"username" label:"Email" validate:"required,email"`
	Password string `form:"password" label:"Password" validate:"required"`
}

type itemForm struct {
	Title       string `form:"title" label:"Title" validate:"required,min=1,max=255"`
	Description string `form:"description" label:"Description" validate:"max=2000"`
}

func (f itemForm) create() api.ItemCreateInput {
	in := api.ItemCreateInput{Title: f.Title}
	if f.Description != "" {
		d := f.Description
		in.Description = &d
	}
	return in
}

func (f itemForm) update() api.ItemUpdateInput {
	return api.ItemUpdateInput{
		Title:       api.Some(f.Title),
		Description: api.OptString(f.Description),
	}
}

type userCreateForm struct {
	Email       string `form:"email" label:"Email" validate:"required,email"`
	FullName    string `form:"full_name" label:"Full name" validate:"max=255"`
	Password    string `form:"password" label:"Password" validate:"required,min=8"`
	IsActive    bool   `form:"is_active"`
	IsSuperuser bool   `form:"is_superuser"`
}

func (f userCreateForm) input() api.UserCreateInput {
	in := api.UserCreateInput{
		Email:       f.Email,
		Password:    f.Password,
		IsActive:    &f.IsActive,
		IsSuperuser: &f.IsSuperuser,
	}
	if f.FullName != "" {
		name := f.FullName
		in.FullName = &name
	}
	return in
}

type userUpdateForm struct {
	Email       string `form:"email" label:"Email" validate:"required,email"`
	FullName    string `form:"full_name" label:"Full name" validate:"max=255"`
	Password    string `form:"password" label:"Password" validate:"omitempty,min=8"`
	IsActive    bool   `form:"is_active"`
	IsSuperuser bool   `form:"is_superuser"`
}

// input leaves the password unchanged when the field was left blank.
func (f userUpdateForm) input() api.UserUpdateInput {
	in := api.UserUpdateInput{
		Email:       api.Some(f.Email),
		FullName:    api.OptString(f.FullName),
		IsActive:    api.Some(f.IsActive),
		IsSuperuser: api.Some(f.IsSuperuser),
	}
	if f.Password != "" {
		in.Password = api.Some(f.Password)
	}
	return in
}

type profileForm struct {
	Email    string `form:"email" label:"Email" validate:"required,email"`
	FullName string `form:"full_name" label:"Full name" validate:"max=255"`
}

func (f profileForm) input() api.UpdateMeInput {
	return api.UpdateMeInput{
		Email:    api.Some(f.Email),
		FullName: api.Some(f.FullName),
	}
}

type passwordForm struct {
	CurrentPassword string `form:"current_password" label:"Current password" validate:"required"`
	NewPassword     string `form:"new_password" label:"New password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" label:"Confirmation" validate:"required,eqfield=NewPassword"`
}

func (f passwordForm) input() api.ChangePasswordInput {
	return api.ChangePasswordInput{CurrentPassword: f.CurrentPassword, NewPassword: f.NewPassword}
}

func parseLoginForm(r *http.Request) loginForm {
	return loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
}

func parseItemForm(r *http.Request) itemForm {
	return itemForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}
}

func parseUserCreateForm(r *http.Request) userCreateForm {
	return userCreateForm{
		Email:       strings.TrimSpace(r.PostFormValue("email")),
		FullName:    strings.TrimSpace(r.PostFormValue("full_name")),
		Password:    r.PostFormValue("password"),
		IsActive:    checked(r, "is_active"),
		IsSuperuser: checked(r, "is_superuser"),
	}
}

func parseUserUpdateForm(r *http.Request) userUpdateForm {
	return userUpdateForm{
		Email:       strings.TrimSpace(r.PostFormValue("email")),
		FullName:    strings.TrimSpace(r.PostFormValue("full_name")),
		Password:    r.PostFormValue("password"),
		IsActive:    checked(r, "is_active"),
		IsSuperuser: checked(r, "is_superuser"),
	}
}

func parseProfileForm(r *http.Request) profileForm {
	return profileForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
	}
}

func parsePasswordForm(r *http.Request) passwordForm {
	return passwordForm{
		CurrentPassword: r.PostFormValue("current_password"),
		NewPassword:     r.PostFormValue("new_password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
}

// checked reads an HTML checkbox.
func checked(r *http.Request, name string) bool {
	switch strings.ToLower(r.PostFormValue(name)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
