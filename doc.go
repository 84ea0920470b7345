// Package atomgo is an AutoML demo for binary classification on tabular data,
// served as a single web page and as a command line tool.
//
// The user picks a dataset (the bundled weather sample or an uploaded CSV or
// XLSX file), chooses cleaning steps and models, and presses Run. atomgo then
// splits the data, cleans it, fits every selected model, and reports a
// metric table together with ROC and precision-recall curves.
//
// # Quick Start
//
// Run the bundled dataset through two models from the command line:
//
//	atomgo run --models gnb,rf
//
// Or start the web page on http://127.0.0.1:8501:
//
//	atomgo serve
//
// The same pipeline is available as a library:
//
//	ds, err := demo.LoadDataset(true, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c := demo.NewController()
//	res, err := c.OnRunClicked(ctx, demo.DefaultConfig(), ds, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Winner.Model, res.Winner.Score)
//
// # Packages
//
//   - demo: the run controller behind the page and the CLI
//   - automl: split, clean, fit, evaluate and plot in one experiment
//   - dataset: CSV/XLSX loading and the bundled weather sample
//   - preprocessing: scaler, imputers and categorical encoders
//   - sklearn/...: Gaussian naive Bayes, logistic regression, forests,
//     gradient boosting (XGBoost and LightGBM style)
//   - metrics: binary classification scores and curves
//   - plot: PNG rendering of ROC and PR curves
//   - web: the HTTP page and JSON API
//   - core/model: estimator interfaces and fitted-state handling
//   - core/parallel: bounded parallel loops used by the forests
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Configuration
//
// Settings come from a YAML file, a .env file and ATOMGO_ environment
// variables, in increasing order of precedence. See internal/config.
package atomgo
