package mcp

import "github.com/mark3labs/mcp-go/mcp"

var scoreToolDef = mcp.NewTool("classify_score",
	mcp.WithDescription("Classify text with the current model. Returns the predicted label and its confidence. Without a trained model the result is label \"unknown\" with confidence 0 and degraded=true."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Text to classify"),
	),
	mcp.WithNumber("top",
		mcp.Description("Also return the top N predictions (max 50)"),
	),
)

var labelToolDef = mcp.NewTool("classify_label",
	mcp.WithDescription("Offer a (text, label) pair to the confidence gate. The pair is appended to the pending store when confidence is at or above the configured threshold. With manual=true the pair is always stored. When label is omitted the text is scored first and the prediction is offered."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Text to label"),
	),
	mcp.WithString("label",
		mcp.Description("Label to assign. Omit to use the model's prediction."),
	),
	mcp.WithNumber("confidence",
		mcp.Description("Confidence in [0, 1]. Required when label is set and manual is false."),
	),
	mcp.WithBoolean("manual",
		mcp.Description("Store the pair regardless of confidence"),
	),
)

var trainToolDef = mcp.NewTool("classify_train",
	mcp.WithDescription("Train a new model from the labeled dataset, select the best candidate by held-out accuracy, save it and load it for scoring."),
)

var learnToolDef = mcp.NewTool("memory_learn",
	mcp.WithDescription("Score a document, offer it to the confidence gate, embed it and add it to vector memory."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Document text"),
	),
	mcp.WithString("url",
		mcp.Description("Source URL stored with the memory entry"),
	),
	mcp.WithObject("extra",
		mcp.Description("Extra string metadata stored with the memory entry"),
	),
)

var ingestToolDef = mcp.NewTool("memory_ingest",
	mcp.WithDescription("Learn local .txt, .md and .markdown files. Each file is processed independently; failures are reported per path."),
	mcp.WithArray("paths",
		mcp.Required(),
		mcp.Description("File paths to ingest"),
		mcp.WithStringItems(),
	),
)

var queryToolDef = mcp.NewTool("memory_query",
	mcp.WithDescription("Find the stored documents nearest to the given text by L2 distance, closest first."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Query text"),
	),
	mcp.WithNumber("k",
		mcp.Description("Number of neighbours (default 5, max 100)"),
	),
)

var askToolDef = mcp.NewTool("memory_ask",
	mcp.WithDescription("Classify text and return the single closest remembered document."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Question or document text"),
	),
)

var statsToolDef = mcp.NewTool("memory_stats",
	mcp.WithDescription("Report vector memory size, dimension, backend and per-category counts."),
)

var mergeToolDef = mcp.NewTool("dataset_merge",
	mcp.WithDescription("Merge pending auto-labeled rows into the labeled dataset. Duplicate texts keep the most recent label. The pending store is removed after a successful merge."),
	mcp.WithBoolean("retrain",
		mcp.Description("Train a new model when the merge changed the dataset"),
	),
)

var doctorToolDef = mcp.NewTool("dataset_doctor",
	mcp.WithDescription("Report label counts and labels with too few examples. Optionally relabel or drop labels and rewrite the dataset."),
	mcp.WithArray("relabel",
		mcp.Description("Relabel rules in from=to form"),
		mcp.WithStringItems(),
	),
	mcp.WithArray("drop",
		mcp.Description("Labels whose rows are removed"),
		mcp.WithStringItems(),
	),
	mcp.WithBoolean("drop_invalid",
		mcp.Description("Remove rows with blank text or label"),
	),
	mcp.WithBoolean("apply",
		mcp.Description("Write the fixed dataset. Without it the fixes are only previewed."),
	),
)
