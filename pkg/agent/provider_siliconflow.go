package agent

// NewSiliconflowProvider creates the Siliconflow provider.
func NewSiliconflowProvider() *OpenAIProvider {
	return &OpenAIProvider{
		info: Info{
			Name:        "Siliconflow",
			Description: "Siliconflow hosted models",
			Version:     "1.0.0",
		},
		defaults: Config{
			BaseURL: "https://api.siliconflow.cn",
			Model:   "Qwen/Qwen2.5-7B-Instruct",
		},
		chatPath:   "/v1/chat/completions",
		modelsPath: "/v1",
	}
}
