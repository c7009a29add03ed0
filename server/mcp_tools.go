package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"youtubeSearch/core"
)

type urlInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL or 11-character video ID"`
}

type queryInput struct {
	Query string `json:"query" jsonschema:"Search query"`
}

type videoURLInput struct {
	VideoURL string `json:"video_url" jsonschema:"YouTube video URL"`
}

type channelInput struct {
	ChannelID string `json:"channel_id" jsonschema:"YouTube channel ID (UC...)"`
}

type saveVideoInput struct {
	VideoURL    string `json:"video_url" jsonschema:"YouTube video URL"`
	ChunkMethod string `json:"chunk_method,omitempty" jsonschema:"Chunking method: basic, semantic or cooking (default: basic)"`
}

type videoList struct {
	Videos []core.VideoInfo `json:"videos"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// NewMCPServer registers every pipeline operation as an MCP tool.
func NewMCPServer(svc Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "youtubeSearch",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_youtube_transcript",
		Description: "Fetch the transcript of a YouTube video together with its title and duration.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in urlInput) (*mcp.CallToolResult, *core.TranscriptRecord, error) {
		if strings.TrimSpace(in.URL) == "" {
			return nil, nil, errors.New("url is required")
		}
		rec, err := svc.Transcript(ctx, in.URL)
		if err != nil {
			return nil, nil, err
		}
		return nil, rec, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_youtube_videos",
		Description: "Search YouTube and return the top videos with channel, thumbnail and view/like counts.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, *videoList, error) {
		if strings.TrimSpace(in.Query) == "" {
			return nil, nil, errors.New("query is required")
		}
		videos, err := svc.SearchYouTube(ctx, in.Query)
		if err != nil {
			return nil, nil, err
		}
		if videos == nil {
			videos = []core.VideoInfo{}
		}
		return nil, &videoList{Videos: videos}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_channel_info",
		Description: "Look up the channel behind a YouTube video and list its recent uploads.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in videoURLInput) (*mcp.CallToolResult, *core.ChannelInfo, error) {
		if strings.TrimSpace(in.VideoURL) == "" {
			return nil, nil, errors.New("video_url is required")
		}
		info, err := svc.ChannelInfo(ctx, in.VideoURL)
		if err != nil {
			return nil, nil, err
		}
		return nil, info, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_channel_youtube_embeddings",
		Description: "Embed and store transcripts of a channel's newest videos that are not stored yet. Returns a step-by-step log.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in channelInput) (*mcp.CallToolResult, *messageOutput, error) {
		if strings.TrimSpace(in.ChannelID) == "" {
			return nil, nil, errors.New("channel_id is required")
		}
		msg, err := svc.SaveChannel(ctx, in.ChannelID)
		if err != nil {
			return nil, nil, err
		}
		return nil, &messageOutput{Message: msg}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_similar_youtube_video",
		Description: "Find the stored transcript chunk most similar to a natural-language query.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, *core.SearchResult, error) {
		if strings.TrimSpace(in.Query) == "" {
			return nil, nil, errors.New("query is required")
		}
		res, err := svc.SearchSimilar(ctx, in.Query)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_single_video_embedding",
		Description: "Chunk, embed and store one video's transcript, replacing chunks stored earlier for it.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in saveVideoInput) (*mcp.CallToolResult, *core.SaveVideoResult, error) {
		if strings.TrimSpace(in.VideoURL) == "" {
			return nil, nil, errors.New("video_url is required")
		}
		res, err := svc.SaveVideo(ctx, in.VideoURL, in.ChunkMethod)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_chunking",
		Description: "Chunk one transcript with the basic, semantic and cooking strategies and report counts, average lengths and samples.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in videoURLInput) (*mcp.CallToolResult, *core.CompareResult, error) {
		if strings.TrimSpace(in.VideoURL) == "" {
			return nil, nil, errors.New("video_url is required")
		}
		res, err := svc.CompareChunking(ctx, in.VideoURL)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})

	slog.Debug("mcp tools registered", slog.Int("count", 7))
	return server
}

// RunMCP serves the tools over stdio until ctx is done or the client leaves.
func RunMCP(ctx context.Context, svc Service, version string) error {
	return NewMCPServer(svc, version).Run(ctx, &mcp.StdioTransport{})
}
