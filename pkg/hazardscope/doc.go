// Package hazardscope analyzes construction-site photographs for safety
// hazards. Each image is classified against a hazard category set with a
// local joint image/text model, reasoned about by a remote multimodal
// model, and scored against the category's standard description.
//
// Quick start:
//
//	s, err := hazardscope.New(
//	    hazardscope.WithModelDir("models/"),
//	    hazardscope.WithAPIKey("gemini", os.Getenv("GEMINI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	res, _ := s.Analyze(ctx, "site/photo.jpg", "gemini")
//	fmt.Println(res.Type, res.Description)
//
// A System is safe for concurrent use. Results are cached by image
// content and backend, so repeated analyses of the same photo are cheap.
package hazardscope
