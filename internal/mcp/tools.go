package mcp

// Tool names
const (
	ToolGetSpecs      = "get_specs_tool"
	ToolBeforePreview = "before_preview_tool"
	ToolGenerate      = "generate_tool"
	ToolTaskStatus    = "get_task_status_tool"
	ToolAfterPreview  = "after_preview_tool"
	ToolCheck         = "check_tool"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var emoticonTypeSchema = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"static", "dynamic", "big", "static_mini", "dynamic_mini"},
	"description": "Emoticon set type. Hyphenated forms such as static-mini are accepted too.",
}

// ToolDefinitions returns all available tools in workflow order.
func ToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        ToolGetSpecs,
			Description: "[STEP 0 - CALL FIRST] Get the KakaoTalk submission specs (required count, file format, pixel sizes, size limits) of every emoticon type, or of one type.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"emoticon_type": emoticonTypeSchema,
				},
				"required": []string{},
			},
		},
		{
			Name:        ToolBeforePreview,
			Description: "[STEP 1] Pre-production preview. Write one description per planned emoticon yourself and get a KakaoTalk-style page listing them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"emoticon_type": emoticonTypeSchema,
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Title of the emoticon set",
					},
					"plans": map[string]interface{}{
						"type":        "array",
						"description": "Planned emoticons, one per item of the set",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"description": map[string]interface{}{
									"type":        "string",
									"description": "What the emoticon shows, e.g. 'cat waving hello'",
								},
							},
							"required": []string{"description"},
						},
					},
				},
				"required": []string{"emoticon_type", "title", "plans"},
			},
		},
		{
			Name:        ToolGenerate,
			Description: "[STEP 2] Start AI generation of the planned emoticons in the background. Returns a task_id and a status_url; poll get_task_status_tool until the task is completed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"emoticon_type": emoticonTypeSchema,
					"emoticons": map[string]interface{}{
						"type":        "array",
						"description": "Emoticons to generate, in order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"description": map[string]interface{}{
									"type":        "string",
									"description": "Detailed description of the emoticon",
								},
							},
							"required": []string{"description"},
						},
					},
					"character_description": map[string]interface{}{
						"type":        "string",
						"description": "Character to generate when no character_image is given",
					},
					"character_image": map[string]interface{}{
						"type":        "string",
						"description": "Reference character as a URL, data URL or base64. Generated automatically when omitted.",
					},
					"hf_token": map[string]interface{}{
						"type":        "string",
						"description": "Hugging Face API token. Can also be sent as Authorization: Bearer <token>.",
					},
				},
				"required": []string{"emoticon_type", "emoticons"},
			},
		},
		{
			Name:        ToolTaskStatus,
			Description: "Get the progress and results of a generation task. Completed tasks list image URLs usable with after_preview_tool.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task_id": map[string]interface{}{
						"type":        "string",
						"description": "Task id returned by generate_tool",
					},
				},
				"required": []string{"task_id"},
			},
		},
		{
			Name:        ToolAfterPreview,
			Description: "[STEP 3] Final preview. Shows the finished emoticons in a KakaoTalk chat simulation and returns a ZIP download URL ready for submission.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"emoticon_type": emoticonTypeSchema,
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Title of the emoticon set",
					},
					"emoticons": map[string]interface{}{
						"type":        "array",
						"description": "Finished emoticon images",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"image_data": map[string]interface{}{
									"type":        "string",
									"description": "Image URL (e.g. from get_task_status_tool), data URL or base64",
								},
							},
							"required": []string{"image_data"},
						},
					},
					"icon": map[string]interface{}{
						"type":        "string",
						"description": "Icon image as URL, data URL or base64",
					},
				},
				"required": []string{"emoticon_type", "title", "emoticons"},
			},
		},
		{
			Name:        ToolCheck,
			Description: "[STEP 4] Validate files against the KakaoTalk submission rules: count, format, pixel size and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"emoticon_type": emoticonTypeSchema,
					"emoticons": map[string]interface{}{
						"type":        "array",
						"description": "Files to check",
						"items": checkFileSchema(),
					},
					"icon": checkFileSchema(),
				},
				"required": []string{"emoticon_type", "emoticons"},
			},
		},
	}
}

func checkFileSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_data": map[string]interface{}{
				"type":        "string",
				"description": "Base64 encoded file",
			},
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "File name (optional)",
			},
		},
		"required": []string{"file_data"},
	}
}
