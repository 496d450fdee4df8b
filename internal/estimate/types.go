package estimate

type Page struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Features    []string `json:"features"`
	URL         string   `json:"url,omitempty"`
	Complexity  string   `json:"complexity,omitempty" validate:"omitempty,oneof=Low Medium High"`
	Notes       string   `json:"notes,omitempty"`
}

type SiteMap struct {
	BusinessType string `json:"business_type" validate:"required"`
	Pages        []Page `json:"pages" validate:"required,min=1,dive"`
}

type Variants struct {
	Developer  string `json:"developer" validate:"required"`
	Designer   string `json:"designer" validate:"required"`
	Copywriter string `json:"copywriter" validate:"required"`
}

type Screen struct {
	ScreenName string   `json:"screen_name" validate:"required"`
	Complexity string   `json:"complexity" validate:"required,oneof=Low Medium High"`
	Notes      string   `json:"notes"`
	Prompts    Variants `json:"prompts"`
}

type PromptSet struct {
	ProjectName string   `json:"project_name" validate:"required"`
	Screens     []Screen `json:"screens" validate:"required,min=1,dive"`
}
