package answer

import (
	"fmt"
	"strings"

	"github.com/fwojciec/handbook"
)

// PromptInput holds everything the prompt is built from.
type PromptInput struct {
	Institution string
	Document    *handbook.Descriptor
	Department  *handbook.Department // optional
	Grade       string               // optional
	Excerpt     handbook.RelevantContext
	History     []handbook.Turn
	Question    string
}

// BuildPrompt composes the single prompt sent to the model. It contains the
// handbook excerpt only, never the whole handbook.
func BuildPrompt(in PromptInput) string {
	name := in.Document.Name
	if in.Institution != "" {
		name = in.Institution + name
	}
	title := in.Document.Name + "学生便覧"

	var sb strings.Builder
	fmt.Fprintf(&sb, "あなたは%sの学生便覧に詳しいチャットボットです。\n", name)
	switch {
	case in.Department != nil && in.Grade != "":
		fmt.Fprintf(&sb, "ユーザーは「%s」の%sの学生です。\n", in.Department.Name, in.Grade)
	case in.Department != nil:
		fmt.Fprintf(&sb, "ユーザーは特に「%s」に関する情報を探しています。\n", in.Department.Name)
	case in.Grade != "":
		fmt.Fprintf(&sb, "ユーザーは%sの学生です。\n", in.Grade)
	}
	fmt.Fprintf(&sb, "以下の%sの抜粋に基づいて、ユーザーの質問に回答してください。\n", title)
	sb.WriteString("抜粋中の「--- PAGE n ---」の行は、その後に続く内容が便覧のnページ目であることを示します。\n\n")

	fmt.Fprintf(&sb, "# %sの抜粋\n", title)
	sb.WriteString(in.Excerpt.Text)
	if !strings.HasSuffix(in.Excerpt.Text, "\n") {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "# %sの抜粋ここまで\n\n", title)

	if len(in.History) > 0 {
		sb.WriteString("# これまでの会話\n")
		for _, t := range in.History {
			speaker := "アシスタント"
			if t.IsUser {
				speaker = "ユーザー"
			}
			fmt.Fprintf(&sb, "%s: %s\n", speaker, t.Content)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("# ユーザーの質問\n")
	sb.WriteString(in.Question)
	sb.WriteString("\n\n")

	sb.WriteString("# 回答のルール\n")
	sb.WriteString("- あなたの知識ではなく、上記の学生便覧の抜粋のみを情報源としてください。\n")
	if in.Department != nil {
		fmt.Fprintf(&sb, "- 回答は「%s」の学生に関連する内容を優先してください。\n", in.Department.Name)
	}
	sb.WriteString("- 回答する際は、該当する情報が記載されているページ番号を必ず含めてください（例：「○ページに記載されています」）。\n")
	sb.WriteString("- 抜粋に該当する内容がない場合は、「学生便覧に記載されていません」と明確に回答してください。\n")
	fmt.Fprintf(&sb, "- 回答は%sで、分かりやすく説明してください。\n", in.Document.AnswerLanguage())

	return sb.String()
}
