// Package kinet implements the numeric core of an on-device activity and
// gesture classifier: windowed feature extraction over motion and touch
// sample streams, a fixed-topology feedforward network with hand-derived
// backpropagation, its persistence formats, and temporal aggregation of the
// per-window classification stream into a stable consensus label.
//
// The Classifier
//
// The center of inference and training is the Classifier, a dense network
// with a fixed shape: FeatureCount inputs, two ReLU hidden layers, and a
// softmax output over the configured class labels.
//
//	cls, err := kinet.NewClassifier(kinet.Config{
//		Classes: []string{"idle", "walk", "shake"},
//	})
//
// Prediction is pure and deterministic:
//
//	res, err := cls.Predict(features)
//
// Full training runs an epoch loop with a seeded validation split, stepped
// learning-rate decay, per-layer gradient clipping and early stopping:
//
//	result := cls.Train(ctx, samples, kinet.DefaultTrainConfig(), onProgress)
//
// Train never reports data problems through error control flow; the returned
// TrainResult carries a structured Failure that callers branch on. A second
// lightweight variant, OnlineClassifier, performs single-sample SGD updates
// and persists through the text model format.
//
// Subpackages
//
// ring holds the generic windowing primitive, features the two extraction
// strategies, modelfile the binary and text persistence codecs plus the
// file-backed Store, aggregate the consensus layer, dataset the labeled
// recording and window-building plumbing, and runner the fixed-cadence
// inference loop and the cancellable background trainer.
package kinet
