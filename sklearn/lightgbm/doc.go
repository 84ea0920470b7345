// Package lightgbm provides a pure Go gradient boosting classifier in the
// style of LightGBM.
//
// Features are discretized into at most 255 histogram bins before training,
// with missing values (NaN) kept in a bin of their own. Trees are grown
// leaf-wise: at every step the leaf with the largest gain is split, until
// num_leaves is reached or no split satisfies min_child_samples. At each
// split the missing bin is tried on both sides and sent to the side with the
// higher gain, so NaN never has to be imputed before training.
//
// # Basic Usage
//
//	clf := lightgbm.NewLGBMClassifier(
//	    lightgbm.WithNEstimators(100),
//	    lightgbm.WithNumLeaves(31),
//	)
//	if err := clf.Fit(XTrain, yTrain); err != nil {
//	    return err
//	}
//	proba, err := clf.PredictProba(XTest)
//
// Binary targets use the logistic objective with one tree per iteration;
// targets with more than two classes use softmax with one tree per class and
// iteration.
//
// # Model Persistence
//
// A fitted model can be written as JSON and read back:
//
//	if err := clf.SaveModel("model.json"); err != nil {
//	    return err
//	}
//	restored := lightgbm.NewLGBMClassifier()
//	err := restored.LoadModel("model.json")
package lightgbm
